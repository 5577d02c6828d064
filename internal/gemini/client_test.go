package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aide/internal/fault"
	"aide/internal/gemini"
)

var fastRetry = fault.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}

func TestClient_Generate(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			http.Error(w, "no key", http.StatusForbidden)
			return
		}

		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Contents[0].Parts[0].Text

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "Dear Bob,\n"}, {"text": "Best regards"}},
				},
			}},
		})
	}))
	defer server.Close()

	client := gemini.NewClient("test-key", "gemini-test", server.URL, server.Client(), fastRetry)

	text, err := client.Generate(context.Background(), "draft an email")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Dear Bob,\nBest regards" {
		t.Errorf("text: got %q", text)
	}
	if gotPrompt != "draft an email" {
		t.Errorf("prompt: got %q", gotPrompt)
	}
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{"forbidden is fatal", http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, fault.IsFatal, "API key not valid"},
		{"bad request is service", http.StatusBadRequest, `{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`, func(err error) bool { return fault.KindOf(err) == fault.KindService }, "bad model"},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, func(err error) bool { return fault.KindOf(err) == fault.KindService }, "empty response"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, func(err error) bool { return err != nil }, "SAFETY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := gemini.NewClient("k", "m", server.URL, server.Client(), fastRetry)
			_, err := client.Generate(context.Background(), "x")
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClient_GenerateRetriesTransient(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	client := gemini.NewClient("k", "m", server.URL, server.Client(), fastRetry)
	text, err := client.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", text, calls)
	}
}

func TestClient_ListModelsFailsOnBadPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"models":[{"name":"models/a","supportedGenerationMethods":["generateContent"]}],"nextPageToken":"p2"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"expired key","status":"UNAUTHENTICATED"}}`))
	}))
	defer server.Close()

	client := gemini.NewClient("k", "m", server.URL, server.Client(), fastRetry)
	if _, err := client.ListModels(context.Background()); !fault.IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestClient_MissingKey(t *testing.T) {
	client := gemini.NewClient("", "", "", nil, fastRetry)
	if _, err := client.Generate(context.Background(), "x"); !fault.IsFatal(err) {
		t.Errorf("Generate: expected fatal error, got %v", err)
	}
	if _, err := client.ListModels(context.Background()); !fault.IsFatal(err) {
		t.Errorf("ListModels: expected fatal error, got %v", err)
	}
}

func TestClient_ListModelsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			w.Write([]byte(`{"models":[{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent","countTokens"]}],"nextPageToken":"p2"}`))
		case "p2":
			w.Write([]byte(`{"models":[{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}]}`))
		default:
			http.Error(w, "bad token", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := gemini.NewClient("k", "m", server.URL, server.Client(), fastRetry)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models: got %d, want 2", len(models))
	}
	if models[0].Name != "models/gemini-2.0-flash" || len(models[0].Methods) != 2 {
		t.Errorf("first model: got %+v", models[0])
	}
	if models[1].Methods[0] != "embedContent" {
		t.Errorf("second model: got %+v", models[1])
	}
}
