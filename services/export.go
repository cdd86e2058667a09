package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"document-extraction-platform/models"
)

// ExportRequest carries the extracted records a client wants as a
// spreadsheet.
type ExportRequest struct {
	SchemaKey string           `json:"schema_key"`
	Records   []map[string]any `json:"records"`
}

// BuildWorkbook renders extracted records into an XLSX workbook with one
// column per schema field, in schema order. Values the records do not carry
// stay blank.
func BuildWorkbook(schema models.Schema, records []map[string]any) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := schema.FieldNames()
	for col, name := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}

	for row, record := range records {
		for col, name := range headers {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(record[name])); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// cellValue flattens JSON-decoded values into spreadsheet-friendly ones.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, float64, bool:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
