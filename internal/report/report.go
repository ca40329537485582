package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

// ProviderColumn 공급자 예보 열 이름
const ProviderColumn = "provider_forecast"

// Records 실행 결과를 평면 표로 변환
// 헤더: date, <model>_forecast, <model>_lower, <model>_upper, ..., ensemble_forecast[, provider_forecast]
// 행: 앙상블 시각 기준 (앙상블이 없으면 첫 모델 기준)
func Records(result *contracts.RunResult, provider *contracts.TimeSeries) [][]string {
	header := []string{"date"}
	for _, f := range result.Forecasts {
		name := string(f.Model)
		header = append(header, name+"_forecast", name+"_lower", name+"_upper")
	}
	if result.Ensemble != nil {
		header = append(header, "ensemble_forecast", "ensemble_lower", "ensemble_upper")
	}
	if provider != nil {
		header = append(header, ProviderColumn)
	}

	times := rowTimes(result)
	byModel := make(map[contracts.ModelKind]map[int64]contracts.ForecastPoint, len(result.Forecasts))
	for _, f := range result.Forecasts {
		byModel[f.Model] = index(f.Points)
	}
	var ensemble map[int64]contracts.ForecastPoint
	if result.Ensemble != nil {
		ensemble = index(result.Ensemble.Points)
	}
	observed := map[int64]float64{}
	if provider != nil {
		for _, p := range provider.Points {
			observed[p.Time.UnixNano()] = p.Value
		}
	}

	daily := result.Step == 0 || result.Step%(24*time.Hour) == 0
	records := [][]string{header}
	for _, ts := range times {
		key := ts.UnixNano()
		row := []string{formatTime(ts, daily)}
		for _, f := range result.Forecasts {
			row = append(row, pointCells(byModel[f.Model], key)...)
		}
		if ensemble != nil {
			row = append(row, pointCells(ensemble, key)...)
		}
		if provider != nil {
			v, ok := observed[key]
			if !ok {
				v = math.NaN()
			}
			row = append(row, formatFloat(v))
		}
		records = append(records, row)
	}
	return records
}

func rowTimes(result *contracts.RunResult) []time.Time {
	var points []contracts.ForecastPoint
	switch {
	case result.Ensemble != nil:
		points = result.Ensemble.Points
	case len(result.Forecasts) > 0:
		points = result.Forecasts[0].Points
	}
	times := make([]time.Time, len(points))
	for i, p := range points {
		times[i] = p.Time
	}
	return times
}

func index(points []contracts.ForecastPoint) map[int64]contracts.ForecastPoint {
	out := make(map[int64]contracts.ForecastPoint, len(points))
	for _, p := range points {
		out[p.Time.UnixNano()] = p
	}
	return out
}

func pointCells(points map[int64]contracts.ForecastPoint, key int64) []string {
	p, ok := points[key]
	if !ok {
		return []string{"", "", ""}
	}
	cells := []string{formatFloat(p.Value), "", ""}
	if p.HasInterval() {
		cells[1] = formatFloat(*p.Lower)
		cells[2] = formatFloat(*p.Upper)
	}
	return cells
}

func formatTime(ts time.Time, daily bool) string {
	if daily {
		return ts.Format("2006-01-02")
	}
	return ts.Format(time.RFC3339)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// MetricsTable 모델별 지표 표 (건너뛴 모델 포함)
func MetricsTable(result *contracts.RunResult) [][]string {
	rows := [][]string{{"model", "mae", "rmse", "mape", "weight", "training", "status"}}
	for _, m := range result.Metrics {
		mape := "n/a"
		if m.MAPEDefined() {
			mape = strconv.FormatFloat(m.MAPE, 'f', 2, 64) + "%"
		}
		weight := ""
		if result.Ensemble != nil {
			if w, ok := result.Ensemble.Weights[m.Model]; ok {
				weight = strconv.FormatFloat(w, 'f', 3, 64)
			}
		}
		rows = append(rows, []string{
			m.Model.Label(),
			formatFloat(m.MAE),
			formatFloat(m.RMSE),
			mape,
			weight,
			m.TrainingDuration.Round(time.Millisecond).String(),
			"ok",
		})
	}
	for _, s := range result.Skipped {
		rows = append(rows, []string{s.Model.Label(), "", "", "", "", "", "skipped: " + s.Reason})
	}
	return rows
}

// WriteCSV 예측 표를 CSV 로 기록
func WriteCSV(w io.Writer, result *contracts.RunResult, provider *contracts.TimeSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(result, provider)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Sheet names
const (
	SheetForecast = "Forecast"
	SheetMetrics  = "Metrics"
	SheetFeatures = "Features"
)

// WriteXLSX 예측, 지표, 특성 중요도 시트를 가진 엑셀 파일 기록
func WriteXLSX(w io.Writer, result *contracts.RunResult, provider *contracts.TimeSeries) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetForecast); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSheet(f, SheetForecast, Records(result, provider), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetMetrics); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetMetrics, err)
	}
	if err := writeSheet(f, SheetMetrics, MetricsTable(result), bold); err != nil {
		return err
	}

	if len(result.FeatureImportance) > 0 {
		if _, err := f.NewSheet(SheetFeatures); err != nil {
			return fmt.Errorf("create sheet %s: %w", SheetFeatures, err)
		}
		rows := [][]string{{"feature", "importance"}}
		for _, fs := range result.FeatureImportance {
			rows = append(rows, []string{fs.Feature, strconv.FormatFloat(fs.Score, 'f', 4, 64)})
		}
		if err := writeSheet(f, SheetFeatures, rows, bold); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// writeSheet 문자열 표 기록, 숫자 셀은 숫자로 저장
func writeSheet(f *excelize.File, sheet string, rows [][]string, headerStyle int) error {
	for r, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
			if r > 0 {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cells[i] = n
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
		}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	return nil
}
