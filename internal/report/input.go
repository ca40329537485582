package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

var timeColumns = []string{"date", "time", "timestamp", "datetime", "ds"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04", // Open-Meteo 시간별 형식
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadSeriesCSV 헤더가 있는 CSV 에서 시계열 읽기
// 시간 열: date/time/timestamp/datetime/ds (없으면 첫 열)
// 값 열: valueColumn, 비어 있으면 시간 열이 아닌 첫 열
// 빈 칸, NaN, null 은 결측
func ReadSeriesCSV(r io.Reader, name, valueColumn string) (*contracts.TimeSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &contracts.ValidationError{Field: "csv", Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	timeIdx, valueIdx, err := columns(header, valueColumn)
	if err != nil {
		return nil, err
	}

	series := &contracts.TimeSeries{Name: name, Variable: header[valueIdx]}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		ts, err := parseTime(rec[timeIdx])
		if err != nil {
			return nil, &contracts.ValidationError{Field: "csv", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		v, err := parseValue(rec[valueIdx])
		if err != nil {
			return nil, &contracts.ValidationError{Field: "csv", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		series.Points = append(series.Points, contracts.Observation{Time: ts, Value: v})
	}
	return series, nil
}

func columns(header []string, valueColumn string) (int, int, error) {
	timeIdx := -1
	for i, h := range header {
		for _, c := range timeColumns {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				timeIdx = i
				break
			}
		}
		if timeIdx >= 0 {
			break
		}
	}
	if timeIdx < 0 {
		timeIdx = 0
	}

	valueIdx := -1
	for i, h := range header {
		if i == timeIdx {
			continue
		}
		if valueColumn == "" || strings.EqualFold(strings.TrimSpace(h), valueColumn) {
			valueIdx = i
			break
		}
	}
	if valueIdx < 0 {
		if valueColumn != "" {
			return 0, 0, &contracts.ValidationError{Field: "csv", Reason: fmt.Sprintf("column %q not found", valueColumn)}
		}
		return 0, 0, &contracts.ValidationError{Field: "csv", Reason: "need a time column and a value column"}
	}
	return timeIdx, valueIdx, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}
