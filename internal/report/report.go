// Package report renders fleet health as an Excel workbook.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"partlife-backend/internal/health"
	"partlife-backend/internal/model"
)

const (
	PartsSheet   = "Parts"
	HistorySheet = "Maintenance Log"
)

// PartsHeader is the column layout of the parts sheet.
var PartsHeader = []string{
	"Machine",
	"Part",
	"Category",
	"Serial Number",
	"Install Date",
	"Days Used",
	"Max Lifetime (days)",
	"Health (%)",
	"Status",
	"Unit Cost",
}

// HistoryHeader is the column layout of the maintenance log sheet.
var HistoryHeader = []string{
	"Replaced",
	"Machine",
	"Part",
	"Old Serial",
	"New Serial",
	"Days Used",
}

var statusFill = map[health.Status]string{
	health.StatusGood:     "#D9F2D9",
	health.StatusWarning:  "#FFF2CC",
	health.StatusCritical: "#F8CBAD",
}

// GeneratePartsReport writes one row per populated part, sorted worst health
// first, and a second sheet with the maintenance history.
func GeneratePartsReport(parts []health.PopulatedPart, machines []model.Machine, logs []model.MaintenanceLog) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(PartsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeHeader(f, PartsSheet, PartsHeader); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f, HistorySheet, HistoryHeader); err != nil {
		f.Close()
		return nil, err
	}

	statusStyles := make(map[health.Status]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create status style: %w", err)
		}
		statusStyles[status] = id
	}

	for i, p := range health.SortByHealth(parts) {
		row := i + 2
		values := []any{
			p.MachineName,
			p.Definition.Name,
			p.Definition.Category,
			p.PartNumber,
			p.InstallDate.Format("2006-01-02"),
			p.CurrentDaysUsed,
			p.Definition.MaxLifetimeDays,
			p.HealthPercentage,
			string(p.Status),
			p.Definition.Cost.InexactFloat64(),
		}
		if err := writeRow(f, PartsSheet, row, values); err != nil {
			f.Close()
			return nil, err
		}
		cell, _ := excelize.CoordinatesToCellName(9, row)
		if err := f.SetCellStyle(PartsSheet, cell, cell, statusStyles[p.Status]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set status style: %w", err)
		}
	}

	names := make(map[string]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Name
	}
	for i, l := range logs {
		machine := names[l.MachineID]
		if machine == "" {
			machine = l.MachineID
		}
		values := []any{
			l.ReplacedDate.Format("2006-01-02 15:04:05"),
			machine,
			l.PartName,
			l.OldPartNumber,
			l.NewPartNumber,
			l.DaysUsedAtReplacement,
		}
		if err := writeRow(f, HistorySheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}

	for _, sheet := range []string{PartsSheet, HistorySheet} {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to freeze panes: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, name, name, 20); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}
