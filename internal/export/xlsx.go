// Package export renders metrics aggregates into spreadsheet form for
// operators who want the numbers outside Grafana.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

const sheetName = "Daily Metrics"

var headers = []string{
	"Date",
	"Prompt Version",
	"Schema Version",
	"Extractions",
	"Avg Confidence",
	"Avg Processing (ms)",
	"Avg Tokens",
	"Avg Cost (USD)",
	"Total Cost (USD)",
}

// Service writes daily metrics aggregates as an XLSX workbook.
type Service struct {
	store ports.MetricsStore
}

func NewService(store ports.MetricsStore) *Service {
	return &Service{store: store}
}

// WriteDailyMetrics renders the aggregates for [start, end) into w.
func (s *Service) WriteDailyMetrics(ctx context.Context, w io.Writer, start, end time.Time) error {
	rows, err := s.store.DailyAggregates(ctx, start, end)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "export.daily_metrics", err)
	}

	book := excelize.NewFile()
	defer book.Close()

	index, err := book.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := book.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, row := range rows {
		values := []any{
			row.Date.Format("2006-01-02"),
			row.PromptVersion,
			string(row.SchemaVersion),
			row.Extractions,
			round4(row.AvgConfidence),
			round2(row.AvgProcessingMS),
			round2(row.AvgTokens),
			round4(row.AvgCostUSD),
			round4(row.TotalCostUSD),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := book.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", i+2, err)
			}
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
