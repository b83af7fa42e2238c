package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPToolGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("X-Test", "yes")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	out, err := NewHTTPTool(nil).Call(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out["status_code"] != http.StatusOK {
		t.Errorf("status_code = %v", out["status_code"])
	}
	if out["body"] != `{"ok":true}` {
		t.Errorf("body = %v", out["body"])
	}
	headers := out["headers"].(map[string]any)
	if headers["X-Test"] != "yes" {
		t.Errorf("headers = %v", headers)
	}
}

func TestHTTPToolPostWithBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("body = %q", body)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	out, err := NewHTTPTool(nil).Call(context.Background(), map[string]any{
		"url":     srv.URL,
		"method":  "post",
		"body":    "payload",
		"headers": map[string]any{"Authorization": "Bearer tok"},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out["status_code"] != http.StatusCreated {
		t.Errorf("status_code = %v", out["status_code"])
	}
}

func TestHTTPToolInputValidation(t *testing.T) {
	tool := NewHTTPTool(nil)
	tests := []struct {
		name    string
		input   map[string]any
		wantErr string
	}{
		{"missing url", map[string]any{}, "url parameter required"},
		{"bad method", map[string]any{"url": "http://x", "method": "DELETE"}, "unsupported HTTP method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Call(context.Background(), tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Call() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetLookup(t *testing.T) {
	mock := &MockTool{ToolName: "search_web", Output: map[string]any{"hits": 3}}
	s := NewSet(mock, NewHTTPTool(nil))

	got, ok := s.Get("search_web")
	if !ok || got.Name() != "search_web" {
		t.Errorf("Get(search_web) = %v, %v", got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}

	out, err := mock.Call(context.Background(), map[string]any{"q": "go"})
	if err != nil || out["hits"] != 3 {
		t.Errorf("mock Call = %v, %v", out, err)
	}
	if calls := mock.Calls(); len(calls) != 1 || calls[0]["q"] != "go" {
		t.Errorf("Calls() = %v", calls)
	}
}
