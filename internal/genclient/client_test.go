package genclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// staticToken — TokenProvider с фиксированным токеном.
func staticToken(token string) TokenProvider {
	return func(_ context.Context) (string, error) {
		return token, nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient создаёт клиент поверх httptest-сервера.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, "", staticToken("test-token"), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, srv
}

// TestListServices проверяет получение списка сервисов и заголовок авторизации.
func TestListServices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/services" {
			t.Errorf("Неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Неожиданный Authorization: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"svc-1","service_name":"contact-form","status":"DEPLOYED","deployed_url":"https://svc-1.example.com"},
			{"id":"svc-2","service_name":"guest-poll","status":"BUILDING"}
		]`)
	})

	records, err := client.ListServices(context.Background())
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Ожидалось 2 записи, получено %d", len(records))
	}
	if records[0].ID != "svc-1" || records[0].Status != model.StatusDeployed {
		t.Errorf("Неожиданная первая запись: %+v", records[0])
	}
	if url, ok := records[0].LiveURL(); !ok || url != "https://svc-1.example.com" {
		t.Errorf("LiveURL: ожидался https://svc-1.example.com, получено %q (%v)", url, ok)
	}
	if records[1].Status != model.StatusBuilding {
		t.Errorf("Неожиданный статус второй записи: %s", records[1].Status)
	}
}

// TestGenerate проверяет создание сервиса по prompt.
func TestGenerate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/services/generate" {
			t.Errorf("Неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Неожиданный Content-Type: %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"prompt":"форма обратной связи"}` {
			t.Errorf("Неожиданное тело: %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"svc-new","prompt":"форма обратной связи","status":"PENDING"}`)
	})

	record, err := client.Generate(context.Background(), "  форма обратной связи  ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.ID != "svc-new" || record.Status != model.StatusPending {
		t.Errorf("Неожиданная запись: %+v", record)
	}
}

// TestGenerateEmptyPrompt проверяет локальный отказ без сетевого запроса.
func TestGenerateEmptyPrompt(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Запрос к backend не должен выполняться")
	})

	for _, prompt := range []string{"", "   ", "\n\t"} {
		if _, err := client.Generate(context.Background(), prompt); !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("prompt %q: ожидалась ErrEmptyPrompt, получено %v", prompt, err)
		}
	}
}

// TestDeleteNoContent проверяет удаление с ответом 204 без тела.
func TestDeleteNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/services/svc-1" {
			t.Errorf("Неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	msg, err := client.Delete(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if msg != "" {
		t.Errorf("Ожидалось пустое сообщение, получено %q", msg)
	}
}

// TestDeleteWithMessage проверяет вариант ответа 200 с JSON-телом.
func TestDeleteWithMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"удаление запланировано"}`)
	})

	msg, err := client.Delete(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if msg != "удаление запланировано" {
		t.Errorf("Неожиданное сообщение: %q", msg)
	}
}

// TestDeleteNotFound проверяет RequestError для уже удалённого сервиса.
func TestDeleteNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service not found", http.StatusNotFound)
	})

	_, err := client.Delete(context.Background(), "svc-gone")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Ожидалась RequestError, получено %v", err)
	}
	if !reqErr.IsNotFound() {
		t.Errorf("IsNotFound: ожидалось true для статуса %d", reqErr.StatusCode)
	}
	if reqErr.Body != "service not found" {
		t.Errorf("Тело ошибки не сохранено: %q", reqErr.Body)
	}
}

// TestArtifactLink проверяет получение ссылки на архив исходников.
func TestArtifactLink(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/svc-1/artifact" {
			t.Errorf("Неожиданный путь: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"download_url":"https://blob.example.com/svc-1.zip"}`)
	})

	url, err := client.ArtifactLink(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("ArtifactLink: %v", err)
	}
	if url != "https://blob.example.com/svc-1.zip" {
		t.Errorf("Неожиданная ссылка: %s", url)
	}
}

// TestBuildLogs проверяет скачивание журнала с именем из Content-Disposition.
func TestBuildLogs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="build-output.log"`)
		fmt.Fprint(w, "step 1: ok\nstep 2: failed")
	})

	content, filename, err := client.BuildLogs(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("BuildLogs: %v", err)
	}
	if string(content) != "step 1: ok\nstep 2: failed" {
		t.Errorf("Неожиданное содержимое: %q", content)
	}
	if filename != "build-output.log" {
		t.Errorf("Неожиданное имя файла: %s", filename)
	}
}

// TestBuildLogsFallbackFilename проверяет детерминированное имя
// при отсутствии Content-Disposition.
func TestBuildLogsFallbackFilename(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "log content")
	})

	_, filename, err := client.BuildLogs(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("BuildLogs: %v", err)
	}
	if filename != "build-svc-1.log" {
		t.Errorf("Ожидалось build-svc-1.log, получено %s", filename)
	}
}

// TestRequestErrorStatuses проверяет превращение не-2xx ответов в RequestError.
func TestRequestErrorStatuses(t *testing.T) {
	for _, status := range []int{400, 401, 409, 422, 500, 503} {
		t.Run(fmt.Sprintf("Status%d", status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "backend error", status)
			})

			_, err := client.ListServices(context.Background())
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("Ожидалась RequestError, получено %v", err)
			}
			if reqErr.StatusCode != status {
				t.Errorf("Ожидался статус %d, получено %d", status, reqErr.StatusCode)
			}
			if reqErr.Operation != "list" {
				t.Errorf("Ожидалась операция list, получено %s", reqErr.Operation)
			}
		})
	}
}

// TestTokenProviderFailure проверяет ErrUnauthenticated при отсутствии токена.
func TestTokenProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Запрос без токена не должен выполняться")
	}))
	t.Cleanup(srv.Close)

	cause := errors.New("сессия истекла")
	client, err := New(srv.URL, "", func(_ context.Context) (string, error) {
		return "", cause
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.ListServices(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Ожидалась ErrUnauthenticated, получено %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Исходная причина должна сохраняться через errors.Join")
	}
}

// TestWithTokenProvider проверяет подмену источника токенов без
// влияния на исходный клиент.
func TestWithTokenProvider(t *testing.T) {
	var seen string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	})

	other := client.WithTokenProvider(staticToken("other-token"))
	if _, err := other.ListServices(context.Background()); err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if seen != "Bearer other-token" {
		t.Errorf("Ожидался Bearer other-token, получено %s", seen)
	}

	// Исходный клиент сохраняет свой токен.
	if _, err := client.ListServices(context.Background()); err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if seen != "Bearer test-token" {
		t.Errorf("Исходный клиент: ожидался Bearer test-token, получено %s", seen)
	}
}
