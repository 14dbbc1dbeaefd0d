package dispatch_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fluxhub/action-dispatch/internal/dispatch"
)

func TestPromise_SettlesOnce(t *testing.T) {
	p := dispatch.New[int]()

	if !p.Fulfill(1) {
		t.Fatal("first settlement should succeed")
	}
	if p.Fulfill(2) {
		t.Fatal("second Fulfill should report already settled")
	}
	if p.Fail(errors.New("late")) {
		t.Fatal("Fail after Fulfill should report already settled")
	}

	v, err := p.Result()
	if err != nil || v != 1 {
		t.Fatalf("expected (1, nil), got (%d, %v)", v, err)
	}
}

func TestPromise_FailWins(t *testing.T) {
	want := errors.New("boom")
	p := dispatch.New[string]()

	if !p.Fail(want) {
		t.Fatal("first settlement should succeed")
	}
	if p.Fulfill("too late") {
		t.Fatal("Fulfill after Fail should report already settled")
	}

	_, err := p.Result()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestPromise_ResultBlocksUntilSettled(t *testing.T) {
	p := dispatch.New[int]()

	got := make(chan int, 1)
	go func() {
		v, _ := p.Result()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Result returned %d before settlement", v)
	case <-time.After(50 * time.Millisecond):
	}

	p.Fulfill(7)

	select {
	case v := <-got:
		if v != 7 {
			t.Fatalf("expected 7, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Result did not return after settlement")
	}
}

func TestPromise_PreSettledConstructors(t *testing.T) {
	if v, err := dispatch.Resolve("x").Result(); err != nil || v != "x" {
		t.Fatalf("Resolve: expected (x, nil), got (%q, %v)", v, err)
	}

	want := errors.New("nope")
	if _, err := dispatch.Reject[string](want).Result(); !errors.Is(err, want) {
		t.Fatalf("Reject: expected %v, got %v", want, err)
	}

	if !dispatch.Resolve(0).Settled() {
		t.Fatal("pre-settled promise should report Settled")
	}
	if dispatch.New[int]().Settled() {
		t.Fatal("fresh promise should not report Settled")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	p := dispatch.Go(func() (int, error) {
		panic("worker exploded")
	})

	_, err := p.Result()
	var pe *dispatch.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "worker exploded" {
		t.Fatalf("unexpected recovered value: %v", pe.Value)
	}
}

func TestGo_PropagatesResult(t *testing.T) {
	v, err := dispatch.Go(func() ([]string, error) {
		return []string{"a", "b"}, nil
	}).Result()
	if err != nil || len(v) != 2 {
		t.Fatalf("expected 2 values, got (%v, %v)", v, err)
	}

	want := errors.New("fetch failed")
	_, err = dispatch.Go(func() (int, error) { return 0, want }).Result()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
