package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/report"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// RunMetadata holds the header block of a forecast run
type RunMetadata struct {
	Title    string
	RunID    string
	Series   string
	Location string // Optional
	Variable string // Optional
	Horizon  int
	Duration time.Duration
}

// PrintRunHeader prints a formatted run header
func PrintRunHeader(meta RunMetadata) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", meta.Title)
	PrintSeparator()
	fmt.Printf("  Run ID    : %s\n", meta.RunID)
	fmt.Printf("  Series    : %s\n", meta.Series)

	if meta.Location != "" {
		fmt.Printf("  Location  : %s\n", meta.Location)
	}
	if meta.Variable != "" {
		fmt.Printf("  Variable  : %s\n", meta.Variable)
	}

	fmt.Printf("  Horizon   : %d\n", meta.Horizon)
	fmt.Printf("  Duration  : %s\n", meta.Duration.Round(time.Millisecond))
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTable prints rows where the first row is the header.
// Column widths fit the widest cell.
func PrintTable(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}
	PrintTableHeader(rows[0], widths)
	for _, row := range rows[1:] {
		PrintTableRow(row, widths)
	}
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// printRun 표 형식 출력 (지표 → 예측값)
func printRun(run *contracts.RunResult, provider *contracts.TimeSeries) {
	meta := RunMetadata{
		Title:    "Forecast Run",
		RunID:    run.RunID,
		Series:   run.SeriesName,
		Variable: run.Variable,
		Horizon:  run.Horizon,
		Duration: run.Duration,
	}
	if run.Location != nil {
		meta.Location = fmt.Sprintf("%s (%.4f, %.4f)", run.Location.Name, run.Location.Latitude, run.Location.Longitude)
	}
	PrintRunHeader(meta)

	fmt.Println()
	PrintTable(report.MetricsTable(run))
	if best, ok := run.BestModel(); ok {
		fmt.Println()
		PrintInfo("Best model (RMSE): " + best.Label())
	}
	if run.Ensemble != nil {
		fmt.Println()
		fmt.Println("Ensemble weights:")
		for _, kind := range run.Succeeded() {
			if w, ok := run.Ensemble.Weights[kind]; ok {
				PrintKeyValue(kind.Label(), fmt.Sprintf("%.3f", w), 16)
			}
		}
	}

	fmt.Println()
	PrintTable(report.Records(run, provider))
}

// openOutput --out 가 비어있으면 stdout
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
