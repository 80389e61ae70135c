package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"podvoice/internal/api"
	"podvoice/internal/logging"
)

func TestClientStatusAndLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		switch r.URL.Path {
		case "/api/status":
			_ = json.NewEncoder(w).Encode(api.Status{Version: "dev", Dialect: "sqlite", Sessions: 2})
		case "/api/logs":
			if r.URL.Query().Get("since") != "7" || r.URL.Query().Get("follow") != "1" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
				Events: []logging.LogEvent{{Sequence: 8, Message: "hello"}},
				Next:   8,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := api.NewClient(server.URL, "secret")
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Dialect != "sqlite" || status.Sessions != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	logs, err := client.Logs(context.Background(), api.LogQuery{Since: 7, Follow: true})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if logs.Next != 8 || len(logs.Events) != 1 || logs.Events[0].Message != "hello" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestClientSurfacesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
	}))
	defer server.Close()

	_, err := api.NewClient(strings.TrimPrefix(server.URL, "http://"), "").Status(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}
