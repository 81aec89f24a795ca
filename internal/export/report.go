// Package export renders booking-history ledgers as XLSX reports.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	reportSheet    = "Booking History"
	ledgerFileName = "ledger.xlsx"
)

var reportHeaders = []string{"User", "Lot", "Spot", "Booked At", "Leaving At", "Duration (h)", "Cost", "Car Number", "Car Model"}

// ReportWriter writes history reports under a fixed export directory.
type ReportWriter struct {
	dir    string
	logger *zerolog.Logger
}

func NewReportWriter(dir string, logger *zerolog.Logger) *ReportWriter {
	return &ReportWriter{dir: dir, logger: logger}
}

// WriteHistory renders a full report of the given records and returns the
// file path. Used by the admin report download.
func (w *ReportWriter) WriteHistory(records []*models.BookingHistory) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	writeHeaderRow(f)

	for i, record := range records {
		writeRecordRow(f, i+2, record)
	}

	_ = f.SetColWidth(reportSheet, "A", "A", 28)
	_ = f.SetColWidth(reportSheet, "B", "E", 20)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(reportSheet, "A1", "I1", style)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("history_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(w.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	w.logger.Info().Str("file_path", filePath).Int("records", len(records)).Msg("history report created")
	return filePath, nil
}

// AppendRecord adds one closed ledger entry to the rolling ledger file,
// creating it on first use. Used by the report worker.
func (w *ReportWriter) AppendRecord(record *models.BookingHistory) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("error creating export directory: %w", err)
	}

	filePath := filepath.Join(w.dir, ledgerFileName)

	var f *excelize.File
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		f = excelize.NewFile()
		if _, err := f.NewSheet(reportSheet); err != nil {
			return fmt.Errorf("error creating sheet: %w", err)
		}
		_ = f.DeleteSheet("Sheet1")
		writeHeaderRow(f)
	} else {
		f, err = excelize.OpenFile(filePath)
		if err != nil {
			return fmt.Errorf("error opening ledger file: %w", err)
		}
	}
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	if err != nil {
		return fmt.Errorf("error reading ledger sheet: %w", err)
	}

	writeRecordRow(f, len(rows)+1, record)

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("error saving ledger file: %w", err)
	}
	return nil
}

func writeHeaderRow(f *excelize.File) {
	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, header)
	}
}

func writeRecordRow(f *excelize.File, row int, record *models.BookingHistory) {
	values := []any{
		record.UserEmail,
		record.LotName,
		record.SpotNumber,
		record.BookedAt.Format(models.TimeLayout),
		"",
		"",
		"",
		record.CarNumber,
		record.CarModel,
	}
	if record.LeavingAt != nil {
		values[4] = record.LeavingAt.Format(models.TimeLayout)
	}
	if record.Duration != nil {
		values[5] = *record.Duration
	}
	if record.Cost != nil {
		values[6] = *record.Cost
	}

	for i, value := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(reportSheet, cell, value)
	}
}
