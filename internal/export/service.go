package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/groupcart/payproof/internal/repository"
)

// Service produces XLSX bytes from the verification ledger so reviewers can
// pull the audit trail as a workbook.
type Service struct {
	ledger repository.LedgerRepository
	logger *slog.Logger
}

func NewService(ledger repository.LedgerRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, logger: logger}
}

// ExportLedgerXLSX returns a workbook for the given date window.
// If only from is provided -> from..now (inclusive).
// If neither is provided   -> the whole ledger.
func (s *Service) ExportLedgerXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromTS, toTS *time.Time
	if from != nil {
		f := from.UTC()
		fromTS = &f
	}
	if to != nil {
		t := to.UTC()
		toTS = &t
	}
	if fromTS != nil && toTS == nil {
		now := time.Now().UTC()
		toTS = &now
	}

	entries, err := s.ledger.ListRange(ctx, fromTS, toTS)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Verification Log"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Timestamp",
		"Proof ID",
		"Submission ID",
		"Order ID",
		"Actor",
		"Action",
		"From Status",
		"To Status",
		"Notes",
		"Metadata",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range entries {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, e.CreatedAt.Format(time.RFC3339))
		write(2, e.ProofID.String())
		write(3, e.SubmissionID.String())
		write(4, e.OrderID.String())
		write(5, e.Actor)
		write(6, string(e.Action))
		write(7, string(e.FromStatus))
		write(8, string(e.ToStatus))
		write(9, truncate(e.Notes, 140))
		write(10, truncate(string(e.Metadata), 200))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "D", 38)
	_ = f.SetColWidth(sheet, "E", "H", 16)
	_ = f.SetColWidth(sheet, "I", "J", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
