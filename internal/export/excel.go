// Package export renders threshold lists as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/speedwagon-io/threshold-console/internal/model"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Thresholds"

type column struct {
	header string
	width  float64
	value  func(t model.Threshold) any
}

func columns(s threshold.Schema) []column {
	cols := []column{
		{"ID", 8, func(t model.Threshold) any { return t.ID }},
		{"Pipeline ID", 12, func(t model.Threshold) any { return idValue(t.PipelineID) }},
	}
	if s.Product {
		cols = append(cols, column{"Product ID", 12, func(t model.Threshold) any { return idValue(t.ProductID) }})
	}

	cols = append(cols,
		numeric("Pressure Min", threshold.FieldPressure, func(t model.Threshold) *decimal.Decimal { return t.PressureMin }),
		numeric("Pressure Max", threshold.FieldPressure, func(t model.Threshold) *decimal.Decimal { return t.PressureMax }),
		numeric("Temperature Min", threshold.FieldTemperature, func(t model.Threshold) *decimal.Decimal { return t.TemperatureMin }),
		numeric("Temperature Max", threshold.FieldTemperature, func(t model.Threshold) *decimal.Decimal { return t.TemperatureMax }),
		numeric("Flow Rate Min", threshold.FieldFlowRate, func(t model.Threshold) *decimal.Decimal { return t.FlowRateMin }),
		numeric("Flow Rate Max", threshold.FieldFlowRate, func(t model.Threshold) *decimal.Decimal { return t.FlowRateMax }),
	)
	if s.ContainedVolume {
		cols = append(cols,
			numeric("Contained Volume Min", threshold.FieldContainedVolume, func(t model.Threshold) *decimal.Decimal { return t.ContainedVolumeMin }),
			numeric("Contained Volume Max", threshold.FieldContainedVolume, func(t model.Threshold) *decimal.Decimal { return t.ContainedVolumeMax }),
		)
	}

	return append(cols,
		numeric("Alert Tolerance", threshold.FieldAlertTolerance, func(t model.Threshold) *decimal.Decimal { return t.AlertTolerance }),
		column{"Active", 10, func(t model.Threshold) any {
			if t.Active == nil {
				return nil
			}
			if *t.Active {
				return "Yes"
			}
			return "No"
		}},
		column{"Updated At", 22, func(t model.Threshold) any {
			if t.UpdatedAt.IsZero() {
				return nil
			}
			return t.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
		}},
	)
}

func numeric(label, field string, get func(model.Threshold) *decimal.Decimal) column {
	return column{
		header: fmt.Sprintf("%s (%s)", label, threshold.Unit(field)),
		width:  20,
		value: func(t model.Threshold) any {
			d := get(t)
			if d == nil {
				return nil
			}
			return d.InexactFloat64()
		},
	}
}

func idValue(id *int64) any {
	if id == nil {
		return nil
	}
	return strconv.FormatInt(*id, 10)
}

// Thresholds builds an xlsx workbook with one row per threshold.
func Thresholds(items []model.Threshold, s threshold.Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to find sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	cols := columns(s)

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	lastCol, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, t := range items {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = c.value(t)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buf.Bytes(), nil
}
