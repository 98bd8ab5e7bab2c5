package contract

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestLoad — встроенный контракт разбирается и проходит валидацию.
func TestLoad(t *testing.T) {
	doc, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if doc.Info == nil || doc.Info.Title == "" {
		t.Error("ожидался непустой info.title")
	}

	// Все операции дашборда присутствуют
	paths := []string{
		"/services",
		"/services/generate",
		"/services/{id}",
		"/services/{id}/artifact",
		"/services/{id}/logs",
		"/activity",
		"/settings",
		"/settings/{key}",
	}
	for _, p := range paths {
		if doc.Paths.Find(p) == nil {
			t.Errorf("путь %s отсутствует в контракте", p)
		}
	}
}

// TestHandler — контракт отдаётся как JSON.
func TestHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil)
	rec := httptest.NewRecorder()

	Handler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, ожидается application/json", ct)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("ответ не является валидным JSON: %v", err)
	}
	if doc["openapi"] == "" {
		t.Error("ожидалось поле openapi в ответе")
	}
}
