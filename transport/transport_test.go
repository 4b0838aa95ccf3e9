package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/admitgov/admitgov"
)

func newTestGovernor(t *testing.T, maxInFlight int) *admitgov.Governor {
	t.Helper()
	g, err := admitgov.New(admitgov.Config{
		Concurrency: &admitgov.ConcurrencyConfig{MaxInFlight: maxInFlight},
	})
	if err != nil {
		t.Fatalf("admitgov.New: %v", err)
	}
	t.Cleanup(g.Dispose)
	return g
}

func staticClassifier(actorID, action string) Classifier {
	return func(*http.Request) admitgov.AcquireRequest {
		return admitgov.AcquireRequest{ActorID: actorID, Action: action}
	}
}

func TestTransportAllowsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := newTestGovernor(t, 10)
	client := &http.Client{Transport: New(g, staticClassifier("user-1", "fetch"))}

	resp, err := client.Get(srv.URL + "/hello")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if g.Snapshot().ActiveLeases != 0 {
		t.Error("lease should have been released after a successful round trip")
	}
}

func TestTransportDeniesWhenConcurrencyExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := newTestGovernor(t, 1)

	// Hold the one slot open with a direct Acquire so the transport's
	// request has nothing left to admit into.
	decision := g.Acquire(admitgov.AcquireRequest{ActorID: "holder", Action: "fetch"})
	granted, ok := decision.(admitgov.Granted)
	if !ok {
		t.Fatalf("expected Granted, got %#v", decision)
	}
	defer g.Release(granted.LeaseID, nil)

	client := &http.Client{Transport: New(g, staticClassifier("user-1", "fetch"))}

	_, err := client.Get(srv.URL + "/hello")
	if err == nil {
		t.Fatal("expected an admission-denied error")
	}
}

func TestTransportDenyHandlerSubstitutesResponse(t *testing.T) {
	g := newTestGovernor(t, 1)
	decision := g.Acquire(admitgov.AcquireRequest{ActorID: "holder", Action: "fetch"})
	granted := decision.(admitgov.Granted)
	defer g.Release(granted.LeaseID, nil)

	rt := New(g, staticClassifier("user-1", "fetch"), WithDenyHandler(
		func(req *http.Request, denied admitgov.Denied) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusTooManyRequests, Body: http.NoBody, Request: req}, nil
		},
	))

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestBuildClassifierFallsBackToDefaultAction(t *testing.T) {
	classify := BuildClassifier(
		[]Rule{{Pattern: "api.openai.com/v1/chat/*", Action: "chat", Weight: 2}},
		"default",
		HeaderActor("X-Actor-ID"),
	)

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/chat/completions", nil)
	req.Header.Set("X-Actor-ID", "team-a")
	acq := classify(req)
	if acq.Action != "chat" || acq.ActorID != "team-a" || acq.Estimate.Weight != 2 {
		t.Errorf("unexpected classification: %+v", acq)
	}

	other, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/embeddings", nil)
	acq = classify(other)
	if acq.Action != "default" {
		t.Errorf("action = %q, want default", acq.Action)
	}
}
