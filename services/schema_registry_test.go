package services

import (
	"testing"

	"document-extraction-platform/models"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewSchemaRegistry()

	for _, key := range []string{"invoice", "invoices", "receipt"} {
		if _, ok := r.Get(key); !ok {
			t.Errorf("builtin schema %q missing", key)
		}
	}
	if _, ok := r.Get("unknown"); ok {
		t.Error("unknown key resolved")
	}

	invoices, _ := r.Get("invoices")
	if invoices.Shape() != models.ShapeNested {
		t.Errorf("invoices shape = %q, want nested", invoices.Shape())
	}
	invoice, _ := r.Get("invoice")
	if invoice.Shape() != models.ShapeFlat {
		t.Errorf("invoice shape = %q, want flat", invoice.Shape())
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewSchemaRegistry()

	if err := r.Register(models.Schema{}); err == nil {
		t.Error("empty key accepted")
	}

	custom := models.Schema{Key: "contract", Name: "Contract"}
	if err := r.Register(custom); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	got, ok := r.Get("contract")
	if !ok || got.Name != "Contract" {
		t.Errorf("registered schema = %+v", got)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewSchemaRegistry()
	list := r.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Key >= list[i].Key {
			t.Errorf("list not sorted: %q before %q", list[i-1].Key, list[i].Key)
		}
	}
}
