// Пакет contract — OpenAPI контракт JSON API Dashboard Module.
// Контракт встроен в бинарник и доступен на /api/v1/openapi.json.
package contract

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	loadOnce sync.Once
	spec     *openapi3.T
	loadErr  error
)

// Load разбирает и валидирует встроенный OpenAPI контракт.
// Результат кэшируется: повторные вызовы возвращают тот же документ.
func Load() (*openapi3.T, error) {
	loadOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			loadErr = fmt.Errorf("ошибка разбора OpenAPI контракта: %w", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			loadErr = fmt.Errorf("OpenAPI контракт невалиден: %w", err)
			return
		}
		spec = doc
	})
	return spec, loadErr
}

// Handler возвращает HTTP handler, отдающий контракт как JSON.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := Load()
		if err != nil {
			http.Error(w, "контракт недоступен", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
