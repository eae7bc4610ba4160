package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPResolver_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u1","email":"u1@example.com"}`))
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, 5*time.Second)

	user, err := resolver.Resolve(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.ID != "u1" || user.Email != "u1@example.com" {
		t.Errorf("user = %+v", user)
	}

	if _, err := resolver.Resolve(context.Background(), "bad-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for rejected token, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for empty token, got %v", err)
	}
}

func TestHTTPResolver_RejectsEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"","email":"ghost@example.com"}`))
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, 5*time.Second)
	if _, err := resolver.Resolve(context.Background(), "token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for user without id, got %v", err)
	}
}

func TestStaticResolver(t *testing.T) {
	resolver := &StaticResolver{Users: map[string]User{
		"tok": {ID: "u1"},
	}}

	user, err := resolver.Resolve(context.Background(), "tok")
	if err != nil || user.ID != "u1" {
		t.Errorf("Resolve(tok) = %+v, %v", user, err)
	}
	if _, err := resolver.Resolve(context.Background(), "other"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
