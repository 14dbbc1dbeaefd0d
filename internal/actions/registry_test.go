package actions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/fluxhub/action-dispatch/internal/actions"
	"github.com/fluxhub/action-dispatch/internal/domain"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := actions.NewRegistry()

	if err := r.Register("core.echo", actions.Echo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := r.Resolve("core.echo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatal("expected a handler")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := actions.NewRegistry()
	if _, err := r.Resolve("nope"); err != domain.ErrUnknownAction {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := actions.NewRegistry()
	_ = r.Register("core.echo", actions.Echo)
	if err := r.Register("core.echo", actions.Echo); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := actions.NewRegistry()
	_ = r.Register("webhook.post", actions.Echo)
	_ = r.Register("core.echo", actions.Echo)

	want := []string{"core.echo", "webhook.post"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEcho(t *testing.T) {
	payload := json.RawMessage(`{"hello":"world"}`)
	got, err := actions.Echo(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected payload echoed, got %s", got)
	}

	got, err = actions.Echo(context.Background(), nil)
	if err != nil || string(got) != "{}" {
		t.Fatalf("expected empty object for nil payload, got (%s, %v)", got, err)
	}
}

func TestWebhookAction_Handle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"delivered":true}`))
	}))
	defer srv.Close()

	a := actions.NewWebhookAction(srv.URL, time.Second)
	result, err := a.Handle(context.Background(), json.RawMessage(`{"msg":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"delivered":true}` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestWebhookAction_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := actions.NewWebhookAction(srv.URL, time.Second)
	if _, err := a.Handle(context.Background(), nil); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestWebhookAction_WrapsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text ack"))
	}))
	defer srv.Close()

	a := actions.NewWebhookAction(srv.URL, time.Second)
	result, err := a.Handle(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !json.Valid(result) {
		t.Fatalf("expected valid JSON result, got %s", result)
	}
}
