package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"diplomacy-reset/internal/domain"
)

func makeConversations(n int) []domain.Conversation {
	out := make([]domain.Conversation, n)
	for i := range out {
		out[i] = domain.Conversation{ID: fmt.Sprintf("C%d", i)}
	}
	return out
}

func TestDispatch_OneOutcomePerItem(t *testing.T) {
	boom := errors.New("boom")
	coord := NewCoordinator(8, nil)

	outs := Dispatch(context.Background(), coord, domain.ActionCloseConversation, makeConversations(10), func(_ context.Context, c domain.Conversation) error {
		// fail every other item; siblings must still run to completion
		if c.ID[1]%2 == 0 {
			return boom
		}
		return nil
	})

	require.Len(t, outs, 10, "count(resolved) must equal count(dispatched)")
	for i, o := range outs {
		require.Equal(t, fmt.Sprintf("C%d", i), o.Entity, "outcomes keep item order")
		require.Equal(t, domain.ActionCloseConversation, o.Action)
	}
	failed := 0
	for _, o := range outs {
		if !o.Succeeded() {
			require.ErrorIs(t, o.Err, boom)
			failed++
		}
	}
	require.Equal(t, 5, failed)
}

func TestDispatch_EmptyInput(t *testing.T) {
	coord := NewCoordinator(8, nil)
	outs := Dispatch(context.Background(), coord, domain.ActionDeleteMessage, []domain.MessageRef{}, func(context.Context, domain.MessageRef) error {
		t.Fatal("action must not run for an empty dispatch")
		return nil
	})
	require.Empty(t, outs)
}

func TestDispatch_BoundedInFlight(t *testing.T) {
	var inFlight, peak atomic.Int64
	coord := NewCoordinator(2, nil)

	Dispatch(context.Background(), coord, domain.ActionLeaveConversation, makeConversations(20), func(context.Context, domain.Conversation) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	require.LessOrEqual(t, peak.Load(), int64(2), "permit pool must cap in-flight actions")
}

func TestDispatch_SharedGateAcrossDispatches(t *testing.T) {
	var inFlight, peak atomic.Int64
	coord := NewCoordinator(3, nil)
	action := func(context.Context, domain.Conversation) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Dispatch(context.Background(), coord, domain.ActionCloseConversation, makeConversations(10), action)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(3), "the gate bounds calls across concurrent dispatches")
}

func TestDispatch_ReportsEveryResolution(t *testing.T) {
	var mu sync.Mutex
	var reported []domain.Outcome
	coord := NewCoordinator(4, func(o domain.Outcome) {
		mu.Lock()
		reported = append(reported, o)
		mu.Unlock()
	})

	Dispatch(context.Background(), coord, domain.ActionAnonymizeUser, []domain.User{{ID: "U1"}, {ID: "U2"}}, func(_ context.Context, u domain.User) error {
		if u.ID == "U2" {
			return errors.New("user_not_found")
		}
		return nil
	})

	require.Len(t, reported, 2, "report fires once per resolution, failures included")
}
