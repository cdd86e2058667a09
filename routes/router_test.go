package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"document-extraction-platform/internal/config"
	"document-extraction-platform/services"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger, err := services.NewRunLedger(services.RunLedgerConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "runs.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ledger.Close)

	cfg := &config.Config{
		GinMode:     gin.TestMode,
		CORSOrigins: []string{"http://localhost:3000"},
		MaxFileSize: 1 << 20,
	}
	return NewHandler(cfg, services.NewSchemaRegistry(), nil, ledger)
}

func TestHealthEndpoint(t *testing.T) {
	router := SetupRouter(testHandler(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListSchemasEndpoint(t *testing.T) {
	router := SetupRouter(testHandler(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schemas", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Schemas []struct {
			Key    string `json:"key"`
			Shape  string `json:"shape"`
			Models []any  `json:"models"`
		} `json:"schemas"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Schemas) < 3 {
		t.Fatalf("got %d schemas", len(body.Schemas))
	}
	for _, s := range body.Schemas {
		if len(s.Models) == 0 {
			t.Errorf("schema %q lists no models", s.Key)
		}
	}
}

func TestListRunsEndpoint(t *testing.T) {
	router := SetupRouter(testHandler(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestExportUnknownSchema(t *testing.T) {
	router := SetupRouter(testHandler(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/export",
		strings.NewReader(`{"schema_key":"nope","records":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestProcessRejectsUnknownSchema(t *testing.T) {
	router := SetupRouter(testHandler(t))

	body := &strings.Builder{}
	body.WriteString("--boundary\r\nContent-Disposition: form-data; name=\"schema_key\"\r\n\r\nnope\r\n--boundary--\r\n")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
