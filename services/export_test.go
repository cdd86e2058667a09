package services

import (
	"testing"

	"document-extraction-platform/models"
)

func TestBuildWorkbook(t *testing.T) {
	schema := flatInvoiceSchema()
	records := []map[string]any{
		{"vendor": "Acme", "number": "INV-1", "amount": 42.5},
		{"vendor": "Globex", "number": "INV-2"},
	}

	f, err := BuildWorkbook(schema, records)
	if err != nil {
		t.Fatalf("failed to build workbook: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Results", "A1")
	if err != nil {
		t.Fatal(err)
	}
	if header != "vendor" {
		t.Errorf("A1 = %q, want vendor", header)
	}

	vendor, _ := f.GetCellValue("Results", "A2")
	if vendor != "Acme" {
		t.Errorf("A2 = %q", vendor)
	}
	amount, _ := f.GetCellValue("Results", "C2")
	if amount != "42.5" {
		t.Errorf("C2 = %q", amount)
	}

	// Absent values render as empty cells.
	missing, _ := f.GetCellValue("Results", "C3")
	if missing != "" {
		t.Errorf("C3 = %q, want empty", missing)
	}
}

func TestBuildWorkbookNestedSchemaUsesItemFields(t *testing.T) {
	schema := nestedInvoiceSchema()
	f, err := BuildWorkbook(schema, []map[string]any{{"vendor": "A", "amount": 1.0}})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	header, _ := f.GetCellValue("Results", "A1")
	if header != "vendor" {
		t.Errorf("A1 = %q, want vendor (item field, not wrapper)", header)
	}
}

func nestedInvoiceSchema() models.Schema {
	return models.Schema{
		Key:  "invoices",
		Name: "Invoice Batch",
		Fields: []models.Field{
			{Name: "item", Kind: models.KindList, Required: true, Fields: []models.Field{
				{Name: "vendor", Kind: models.KindString, Required: true},
				{Name: "amount", Kind: models.KindNumber, Required: true},
			}},
		},
	}
}
