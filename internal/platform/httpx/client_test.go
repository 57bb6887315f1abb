package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Millisecond
	}
	client := NewClient(opts)
	gock.InterceptClient(client.HTTPClient())
	t.Cleanup(gock.Off)
	return client
}

func TestDoJSONDecodesResponse(t *testing.T) {
	gock.New("https://api.example.com").
		Get("/v1/things/42").
		MatchHeader("Authorization", "Bearer tok").
		Reply(200).
		JSON(map[string]string{"name": "Onyx"})

	client := newTestClient(t, Options{BaseURL: "https://api.example.com", Token: "tok"})

	var out struct {
		Name string `json:"name"`
	}
	if err := client.DoJSON(context.Background(), http.MethodGet, "/v1/things/42", nil, &out); err != nil {
		t.Fatalf("DoJSON returned error: %v", err)
	}
	if out.Name != "Onyx" {
		t.Fatalf("unexpected decoded name: %s", out.Name)
	}
	if !gock.IsDone() {
		t.Fatal("expected all mocks to be consumed")
	}
}

func TestDoJSONCustomTokenHeader(t *testing.T) {
	gock.New("https://shop.example.com").
		Post("/admin/api/graphql.json").
		MatchHeader("X-Access-Token", "tok").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{}})

	client := newTestClient(t, Options{
		BaseURL: "https://shop.example.com",
		Token:   "tok",
		Header:  "X-Access-Token",
	})

	err := client.DoJSON(context.Background(), http.MethodPost, "/admin/api/graphql.json", map[string]string{"query": "{}"}, nil)
	if err != nil {
		t.Fatalf("DoJSON returned error: %v", err)
	}
}

func TestDoJSONRetriesTransientFailures(t *testing.T) {
	gock.New("https://api.example.com").
		Get("/v1/list").
		Reply(503)
	gock.New("https://api.example.com").
		Get("/v1/list").
		Reply(200).
		JSON(map[string]string{"status": "ok"})

	client := newTestClient(t, Options{BaseURL: "https://api.example.com", RetryMax: 3})

	var out struct {
		Status string `json:"status"`
	}
	if err := client.DoJSON(context.Background(), http.MethodGet, "/v1/list", nil, &out); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if out.Status != "ok" {
		t.Fatalf("unexpected payload after retry: %s", out.Status)
	}
	if !gock.IsDone() {
		t.Fatal("expected both mocks to be consumed")
	}
}

func TestDoJSONExhaustsRetryBudget(t *testing.T) {
	gock.New("https://api.example.com").
		Get("/v1/list").
		Times(3).
		Reply(502)

	client := newTestClient(t, Options{BaseURL: "https://api.example.com", RetryMax: 2})

	err := client.DoJSON(context.Background(), http.MethodGet, "/v1/list", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestDoJSONNotFoundIsNotRetried(t *testing.T) {
	gock.New("https://api.example.com").
		Delete("/v1/things/9").
		Reply(404)

	client := newTestClient(t, Options{BaseURL: "https://api.example.com", RetryMax: 5})

	err := client.DoJSON(context.Background(), http.MethodDelete, "/v1/things/9", nil, nil)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	var httpErr *Error
	if !errors.As(err, &httpErr) || httpErr.Status() != http.StatusNotFound {
		t.Fatalf("expected status 404, got %v", err)
	}
	// A second mock was never registered: retrying would have failed loudly.
	if !gock.IsDone() {
		t.Fatal("expected the single mock to be consumed exactly once")
	}
}

func TestDoJSONConflict(t *testing.T) {
	gock.New("https://api.example.com").
		Post("/v1/things").
		Reply(409).
		BodyString("duplicate")

	client := newTestClient(t, Options{BaseURL: "https://api.example.com"})

	err := client.DoJSON(context.Background(), http.MethodPost, "/v1/things", map[string]string{"name": "Onyx"}, nil)
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
