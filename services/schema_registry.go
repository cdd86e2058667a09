package services

import (
	"fmt"
	"sort"
	"sync"

	"document-extraction-platform/models"
)

// SchemaRegistry maps schema keys to their field descriptors. Static after
// startup; safe for concurrent readers.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]models.Schema
}

// NewSchemaRegistry creates a registry preloaded with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[string]models.Schema)}
	for _, s := range builtinSchemas() {
		r.schemas[s.Key] = s
	}
	return r
}

// Register adds or replaces a schema.
func (r *SchemaRegistry) Register(s models.Schema) error {
	if s.Key == "" {
		return fmt.Errorf("schema key must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Key] = s
	return nil
}

// Get resolves a schema key.
func (r *SchemaRegistry) Get(key string) (models.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[key]
	return s, ok
}

// List returns all schemas sorted by key.
func (r *SchemaRegistry) List() []models.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func invoiceFields() []models.Field {
	return []models.Field{
		{Name: "vendor", Kind: models.KindString, Description: "Name of the vendor or supplier", Required: true},
		{Name: "number", Kind: models.KindString, Description: "Invoice number as printed", Required: true},
		{Name: "amount", Kind: models.KindNumber, Description: "Total invoice amount", Required: true},
		{Name: "currency", Kind: models.KindString, Description: "ISO currency code", Required: false},
		{Name: "issue_date", Kind: models.KindDate, Description: "Date the invoice was issued", Required: false},
	}
}

func builtinSchemas() []models.Schema {
	return []models.Schema{
		{
			Key:         "invoice",
			Name:        "Invoice",
			Description: "A single invoice per document",
			Fields:      invoiceFields(),
		},
		{
			Key:         "invoices",
			Name:        "Invoice Batch",
			Description: "Documents carrying one or more invoices; each invoice becomes its own record",
			Fields: []models.Field{
				{Name: "item", Kind: models.KindList, Description: "All invoices found in the document", Required: true, Fields: invoiceFields()},
			},
		},
		{
			Key:         "receipt",
			Name:        "Receipt",
			Description: "A point-of-sale receipt",
			Fields: []models.Field{
				{Name: "merchant", Kind: models.KindString, Description: "Merchant name", Required: true},
				{Name: "total", Kind: models.KindNumber, Description: "Total paid", Required: true},
				{Name: "payment_method", Kind: models.KindEnum, Description: "How the purchase was paid", Required: false,
					EnumValues: []string{"cash", "card", "transfer", "other"}},
				{Name: "purchased_at", Kind: models.KindDatetime, Description: "Purchase timestamp", Required: false},
			},
		},
	}
}
