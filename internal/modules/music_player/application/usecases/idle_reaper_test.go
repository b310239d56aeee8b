package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// idleFixture leaves testGuild idle with an empty queue at the fixture clock's time.
func idleFixture(t *testing.T) (*controllerFixture, *mockVoiceConnection, *IdleReaper) {
	t.Helper()

	f := newControllerFixture()
	f.enqueue(t, "A")
	f.finish()

	state := f.store.Get(testGuild)
	state.Lock()
	state.SetVoiceChannelID(testChannel)
	state.Unlock()

	conn := &mockVoiceConnection{}
	reaper := NewIdleReaper(f.store, conn, f.sink, DefaultIdleTimeout, time.Second, f.clock.Now)
	return f, conn, reaper
}

func TestIdleReaper_Sweep(t *testing.T) {
	t.Run("disconnects after the threshold", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)

		f.clock.Advance(179 * time.Second)
		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected no disconnect before the threshold, got %d", n)
		}

		f.clock.Advance(time.Second)
		if n := reaper.Sweep(context.Background()); n != 1 {
			t.Errorf("expected 1 disconnect, got %d", n)
		}

		if len(conn.leaves) != 1 {
			t.Errorf("expected 1 leave, got %d", len(conn.leaves))
		}
		snapshot := f.snapshot()
		if !snapshot.IdleSince.IsZero() {
			t.Error("expected idle timer to be cleared")
		}
		if snapshot.VoiceChannelID != 0 {
			t.Errorf("expected no voice channel, got %d", snapshot.VoiceChannelID)
		}

		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected a single disconnect, got %d more", n)
		}
	})

	t.Run("enqueue before the threshold cancels", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)

		f.clock.Advance(179 * time.Second)
		f.enqueue(t, "B")
		f.clock.Advance(time.Minute)

		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected no disconnect, got %d", n)
		}
		if len(conn.leaves) != 0 {
			t.Errorf("expected no leave, got %d", len(conn.leaves))
		}
		if f.snapshot().Status != domain.StatusPlaying {
			t.Errorf("expected Playing, got %s", f.snapshot().Status)
		}
	})

	t.Run("stale timer with queued tracks is cleared", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)
		state := f.store.Get(testGuild)
		state.Lock()
		state.Queue().Append(mockTrack("B"))
		state.Unlock()
		f.clock.Advance(DefaultIdleTimeout)

		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected no disconnect, got %d", n)
		}
		if len(conn.leaves) != 0 {
			t.Errorf("expected no leave, got %d", len(conn.leaves))
		}
		if !f.snapshot().IdleSince.IsZero() {
			t.Error("expected stale idle timer to be cleared")
		}
	})

	t.Run("active sink is left alone", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)
		f.sink.status = domain.StatusPlaying
		f.clock.Advance(DefaultIdleTimeout)

		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected no disconnect, got %d", n)
		}
		if len(conn.leaves) != 0 {
			t.Errorf("expected no leave, got %d", len(conn.leaves))
		}
	})

	t.Run("vanished voice session still counts", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)
		conn.leaveErr = ports.ErrNoVoiceSession
		f.clock.Advance(DefaultIdleTimeout)

		if n := reaper.Sweep(context.Background()); n != 1 {
			t.Errorf("expected 1 disconnect, got %d", n)
		}
		if !f.snapshot().IdleSince.IsZero() {
			t.Error("expected idle timer to be cleared")
		}
	})

	t.Run("leave failure clears the timer", func(t *testing.T) {
		f, conn, reaper := idleFixture(t)
		conn.leaveErr = errors.New("gateway down")
		f.clock.Advance(DefaultIdleTimeout)

		if n := reaper.Sweep(context.Background()); n != 1 {
			t.Errorf("expected 1 disconnect attempt, got %d", n)
		}
		if n := reaper.Sweep(context.Background()); n != 0 {
			t.Errorf("expected no retry, got %d", n)
		}
	})
}

func TestIdleReaper_Run(t *testing.T) {
	f, conn, _ := idleFixture(t)
	f.clock.Advance(DefaultIdleTimeout)
	reaper := NewIdleReaper(f.store, conn, f.sink, DefaultIdleTimeout, 5*time.Millisecond, f.clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		conn.mu.Lock()
		left := len(conn.leaves)
		conn.mu.Unlock()
		if left == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the reaper")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
