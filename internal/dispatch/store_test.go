package dispatch_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fluxhub/action-dispatch/internal/dispatch"
)

func TestStore_FoldsFulfilledSequence(t *testing.T) {
	s := dispatch.NewStore[[]string]()

	s.Apply(dispatch.NewPending[[]string]())
	if st := s.State(); !st.Loading || st.Err != nil {
		t.Fatalf("after pending: expected loading with no error, got %+v", st)
	}

	locations := []string{"Madrid", "Berlin", "San Francisco"}
	s.Apply(dispatch.NewFulfilled(locations))

	st := s.State()
	if st.Loading {
		t.Fatal("after fulfilled: expected loading=false")
	}
	if !reflect.DeepEqual(st.Value, locations) {
		t.Fatalf("expected %v, got %v", locations, st.Value)
	}
	if st.Err != nil {
		t.Fatalf("expected no error, got %v", st.Err)
	}
}

func TestStore_RejectionRetainsPreviousValue(t *testing.T) {
	s := dispatch.NewStore[[]string]()
	stale := []string{"Madrid"}

	s.Apply(dispatch.NewPending[[]string]())
	s.Apply(dispatch.NewFulfilled(stale))

	netErr := errors.New("network down")
	s.Apply(dispatch.NewPending[[]string]())
	s.Apply(dispatch.NewRejected[[]string](netErr))

	st := s.State()
	if st.Loading {
		t.Fatal("expected loading=false after rejection")
	}
	if !errors.Is(st.Err, netErr) {
		t.Fatalf("expected %v, got %v", netErr, st.Err)
	}
	if !reflect.DeepEqual(st.Value, stale) {
		t.Fatalf("expected stale value retained, got %v", st.Value)
	}
}

func TestStore_PendingClearsPreviousError(t *testing.T) {
	s := dispatch.NewStore[int]()

	s.Apply(dispatch.NewPending[int]())
	s.Apply(dispatch.NewRejected[int](errors.New("first attempt failed")))
	s.Apply(dispatch.NewPending[int]())

	if st := s.State(); st.Err != nil {
		t.Fatalf("expected error cleared on new pending, got %v", st.Err)
	}
}

// TestStore_AsDispatchSubscriber runs the store end to end behind Dispatch.
func TestStore_AsDispatchSubscriber(t *testing.T) {
	s := dispatch.NewStore[string]()

	dispatch.DispatchSync(func() *dispatch.Promise[string] {
		return dispatch.Go(func() (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "ready", nil
		})
	}, s.Emitter())

	st := s.State()
	if st.Loading || st.Value != "ready" || st.Err != nil {
		t.Fatalf("unexpected final state: %+v", st)
	}
}
