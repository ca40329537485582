package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/forecast"
	"github.com/yandri918/prediksi-cuaca/internal/report"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// maxBodyBytes 요청 본문 상한 (시계열 수만 건 수준)
const maxBodyBytes = 8 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor 에러 종류별 HTTP 상태
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInsufficientData),
		errors.Is(err, contracts.ErrEmptyEnsemble),
		errors.Is(err, contracts.ErrModelFit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure 에러 매핑 후 응답 (5xx 만 내부 메시지 숨김)
func respondFailure(w http.ResponseWriter, log *logger.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error(msg)
		respondError(w, status, msg)
		return
	}
	log.WithError(err).WithField("status", status).Debug(msg)
	respondError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &contracts.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

func parseFormat(r *http.Request) (string, error) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV, FormatXLSX:
		return format, nil
	default:
		return "", &contracts.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q (json, csv, xlsx)", format)}
	}
}

// respondExport CSV/XLSX 첨부 응답, JSON 은 payload 그대로
func respondExport(w http.ResponseWriter, log *logger.Logger, format string, run *contracts.RunResult, provider *contracts.TimeSeries, payload any) {
	switch format {
	case FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="forecast-%s.csv"`, run.RunID))
		if err := report.WriteCSV(w, run, provider); err != nil {
			log.WithError(err).Error("Failed to write CSV export")
		}
	case FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="forecast-%s.xlsx"`, run.RunID))
		if err := report.WriteXLSX(w, run, provider); err != nil {
			log.WithError(err).Error("Failed to write XLSX export")
		}
	default:
		respondJSON(w, http.StatusOK, payload)
	}
}
