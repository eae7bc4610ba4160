package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"mira/internal/calendar"
)

// memTokenStore is an in-memory TokenStore for tests.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]*oauth2.Token)}
}

func (s *memTokenStore) LoadToken(_ context.Context, userID string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID], nil
}

func (s *memTokenStore) SaveToken(_ context.Context, userID string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func testWindow(t *testing.T) calendar.TimeWindow {
	t.Helper()
	w, err := calendar.NewTimeWindow(
		time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("NewTimeWindow: %v", err)
	}
	return w
}

func freshToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "fresh-token", Expiry: time.Now().Add(time.Hour)}
}

func TestOutlookFetchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fresh-token" {
			t.Errorf("Authorization header = %q", got)
		}
		if got := r.Header.Get("Prefer"); got != `outlook.timezone="UTC"` {
			t.Errorf("Prefer header = %q", got)
		}
		if r.URL.Query().Get("startDateTime") == "" || r.URL.Query().Get("endDateTime") == "" {
			t.Errorf("missing window query params: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"value":[
			{"id":"o1","subject":"1:1","start":{"dateTime":"2025-01-15T16:00:00.0000000","timeZone":"UTC"},"end":{"dateTime":"2025-01-15T17:00:00.0000000","timeZone":"UTC"}}
		]}`)
	}))
	defer server.Close()

	tokens := newMemTokenStore()
	tokens.SaveToken(context.Background(), "u1", freshToken())

	client := NewOutlookClient(&oauth2.Config{}, tokens, 5*time.Second)
	client.baseURL = server.URL

	raws, err := client.FetchEvents(context.Background(), "u1", testWindow(t))
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d events, want 1", len(raws))
	}
	if raws[0].Provider != calendar.ProviderOutlook || raws[0].Outlook.ID != "o1" {
		t.Errorf("unexpected raw event: %+v", raws[0])
	}
}

func TestOutlookFetchEvents_FollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			fmt.Fprint(w, `{"value":[{"id":"o2","subject":"Review","start":{"dateTime":"2025-01-15T16:30:00"},"end":{"dateTime":"2025-01-15T17:00:00"}}]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"o1","subject":"1:1","start":{"dateTime":"2025-01-15T16:00:00"},"end":{"dateTime":"2025-01-15T16:30:00"}}],"@odata.nextLink":"%s/page2"}`, server.URL)
	}))
	defer server.Close()

	tokens := newMemTokenStore()
	tokens.SaveToken(context.Background(), "u1", freshToken())

	client := NewOutlookClient(&oauth2.Config{}, tokens, 5*time.Second)
	client.baseURL = server.URL

	raws, err := client.FetchEvents(context.Background(), "u1", testWindow(t))
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d events, want 2 across pages", len(raws))
	}
	if raws[1].Outlook.ID != "o2" {
		t.Errorf("second page event = %+v", raws[1].Outlook)
	}
}

func TestOutlookFetchEvents_NotConnected(t *testing.T) {
	client := NewOutlookClient(&oauth2.Config{}, newMemTokenStore(), 5*time.Second)

	_, err := client.FetchEvents(context.Background(), "nobody", testWindow(t))
	if err == nil {
		t.Fatalf("expected error for missing token")
	}
	if KindOf(err) != ErrAuthExpired {
		t.Errorf("KindOf(err) = %v, want %v", KindOf(err), ErrAuthExpired)
	}
}

func TestOutlookFetchEvents_UnauthorizedClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := newMemTokenStore()
	tokens.SaveToken(context.Background(), "u1", freshToken())

	client := NewOutlookClient(&oauth2.Config{}, tokens, 5*time.Second)
	client.baseURL = server.URL

	_, err := client.FetchEvents(context.Background(), "u1", testWindow(t))
	if KindOf(err) != ErrAuthExpired {
		t.Errorf("KindOf(err) = %v, want %v", KindOf(err), ErrAuthExpired)
	}

	var pe *Error
	if !errors.As(err, &pe) || pe.Provider != calendar.ProviderOutlook {
		t.Errorf("error not tagged with outlook provider: %v", err)
	}
}

func TestOutlookFetchEvents_RateLimitClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tokens := newMemTokenStore()
	tokens.SaveToken(context.Background(), "u1", freshToken())

	client := NewOutlookClient(&oauth2.Config{}, tokens, 5*time.Second)
	client.baseURL = server.URL

	_, err := client.FetchEvents(context.Background(), "u1", testWindow(t))
	if KindOf(err) != ErrRateLimited {
		t.Errorf("KindOf(err) = %v, want %v", KindOf(err), ErrRateLimited)
	}
}

func TestOutlookRefreshesNearExpiryToken(t *testing.T) {
	var graphCalls, tokenCalls int

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		graphCalls++
		if got := r.Header.Get("Authorization"); got != "Bearer refreshed-token" {
			t.Errorf("Authorization after refresh = %q", got)
		}
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer graph.Close()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"refreshed-token","token_type":"Bearer","expires_in":3600,"refresh_token":"r2"}`)
	}))
	defer tokenServer.Close()

	tokens := newMemTokenStore()
	tokens.SaveToken(context.Background(), "u1", &oauth2.Token{
		AccessToken:  "stale-token",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(time.Minute), // inside the 5-minute buffer
	})

	oauthConfig := &oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{TokenURL: tokenServer.URL},
	}
	client := NewOutlookClient(oauthConfig, tokens, 5*time.Second)
	client.baseURL = graph.URL

	if _, err := client.FetchEvents(context.Background(), "u1", testWindow(t)); err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
	if graphCalls != 1 {
		t.Errorf("graph endpoint called %d times, want 1", graphCalls)
	}

	saved, _ := tokens.LoadToken(context.Background(), "u1")
	if saved.AccessToken != "refreshed-token" {
		t.Errorf("refreshed token not persisted: %+v", saved)
	}
}
