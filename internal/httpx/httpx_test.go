package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostStreamLeavesBodyOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("x-custom") != "abc" {
			t.Errorf("custom header = %q", r.Header.Get("x-custom"))
		}
		fmt.Fprint(w, "data: one\n\n")
	}))
	defer server.Close()

	response, err := PostStream(context.Background(), nil, server.URL,
		map[string]string{"k": "v"}, Header{Key: "x-custom", Value: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "data: one\n\n" {
		t.Errorf("body = %q", body)
	}
}

func TestPostStreamNon2xxReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"slow down"}`)
	}))
	defer server.Close()

	_, err := PostStream(context.Background(), nil, server.URL, struct{}{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != 429 || string(statusErr.Body) != `{"error":"slow down"}` {
		t.Errorf("status error = %+v", statusErr)
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"ok"}`)
	}))
	defer server.Close()

	type payload struct {
		Name string `json:"name"`
	}
	decoded, err := GetJSON[payload](context.Background(), nil, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Name != "ok" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestGetJSONNon2xx(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := GetJSON[struct{}](context.Background(), nil, server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 404 {
		t.Fatalf("error = %v, want 404 StatusError", err)
	}
}
