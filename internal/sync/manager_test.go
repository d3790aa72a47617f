// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cinecord/internal/config"
	"github.com/tomtom215/cinecord/internal/metrics"
	"github.com/tomtom215/cinecord/internal/presence"
	"github.com/tomtom215/cinecord/internal/trakt"
)

type fakeSource struct {
	mu       sync.Mutex
	watching *trakt.Watching
	rating   float64
	fetches  int
}

func (f *fakeSource) FetchCurrentlyWatching(_ context.Context) (*trakt.Watching, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.watching, f.watching != nil
}

func (f *fakeSource) MovieRating(_ context.Context, _ string) float64 { return f.rating }

func (f *fakeSource) EpisodeRating(_ context.Context, _ string, _, _ int) float64 { return f.rating }

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// countingBuilder wraps the real builder and counts calls.
type countingBuilder struct {
	inner  *presence.Builder
	builds int
}

func (b *countingBuilder) Build(ctx context.Context, w *trakt.Watching, r presence.RatingLookup) (*presence.Payload, error) {
	b.builds++
	return b.inner.Build(ctx, w, r)
}

type fakePresence struct {
	mu       sync.Mutex
	applyErr error

	connects int
	clears   int
	closes   int
	applied  []*presence.Payload
}

func (f *fakePresence) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return ctx.Err()
}

func (f *fakePresence) ApplyWithRecovery(_ context.Context, p *presence.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, p)
	return f.applyErr
}

func (f *fakePresence) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakePresence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakePresence) counts() (connects, clears, closes, applies int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.clears, f.closes, len(f.applied)
}

func newTestManager(src *fakeSource, pres *fakePresence, interval time.Duration) (*Manager, *countingBuilder, *presence.SnapshotStore) {
	b := &countingBuilder{inner: presence.NewBuilder()}
	snaps := presence.NewSnapshotStore()
	m := NewManager(&config.SyncConfig{Interval: interval}, src, b, pres, snaps)
	return m, b, snaps
}

func inception() *trakt.Watching {
	return &trakt.Watching{
		StartedAt: "2024-03-10T20:00:00.000Z",
		ExpiresAt: "2024-03-10T22:00:00.000Z",
		Type:      "movie",
		Movie: &trakt.Movie{
			Title: "Inception",
			Year:  2010,
			IDs:   trakt.IDs{Slug: "inception-2010", IMDB: "tt1375666"},
		},
	}
}

func breakingBadPilot() *trakt.Watching {
	return &trakt.Watching{
		StartedAt: "2024-03-10T20:00:00.000Z",
		ExpiresAt: "2024-03-10T21:00:00.000Z",
		Type:      "episode",
		Show:      &trakt.Show{Title: "Breaking Bad", IDs: trakt.IDs{Slug: "breaking-bad"}},
		Episode:   &trakt.Episode{Season: 1, Number: 1, Title: "Pilot"},
	}
}

func TestTickMoviePlaying(t *testing.T) {
	t.Parallel()

	src := &fakeSource{watching: inception(), rating: 8.8}
	pres := &fakePresence{}
	m, _, snaps := newTestManager(src, pres, time.Hour)

	if got := m.Tick(context.Background()); got != metrics.OutcomePlaying {
		t.Fatalf("Tick() = %q, want playing", got)
	}

	_, clears, _, applies := pres.counts()
	if applies != 1 || clears != 0 {
		t.Fatalf("applies=%d clears=%d, want 1 and 0", applies, clears)
	}
	p := pres.applied[0]
	if p.Details != "Inception" || p.State != "📅 2010" || p.SmallText != "⭐️ 8.8/10" {
		t.Errorf("payload = %+v", p)
	}

	snap, ok := snaps.Latest()
	if !ok || snap.Outcome != metrics.OutcomePlaying || snap.Payload != p {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.CorrelationID == "" {
		t.Error("snapshot should carry the tick correlation id")
	}
}

func TestTickEpisodePlaying(t *testing.T) {
	t.Parallel()

	src := &fakeSource{watching: breakingBadPilot(), rating: 9.0}
	pres := &fakePresence{}
	m, _, _ := newTestManager(src, pres, time.Hour)

	if got := m.Tick(context.Background()); got != metrics.OutcomePlaying {
		t.Fatalf("Tick() = %q, want playing", got)
	}
	if got := pres.applied[0].State; got != `1x01 "Pilot"` {
		t.Errorf("State = %q", got)
	}
}

func TestTickNothingPlayingClearsOnce(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	pres := &fakePresence{}
	m, builder, snaps := newTestManager(src, pres, time.Hour)

	if got := m.Tick(context.Background()); got != metrics.OutcomeIdle {
		t.Fatalf("Tick() = %q, want idle", got)
	}

	_, clears, _, applies := pres.counts()
	if clears != 1 {
		t.Errorf("clears = %d, want exactly 1", clears)
	}
	if builder.builds != 0 || applies != 0 {
		t.Errorf("builds=%d applies=%d, want none", builder.builds, applies)
	}
	if snap, _ := snaps.Latest(); snap.Payload != nil {
		t.Errorf("idle snapshot should have no payload: %+v", snap)
	}
}

func TestTickSkipsUnpresentableState(t *testing.T) {
	t.Parallel()

	badTimestamp := inception()
	badTimestamp.StartedAt = "not-a-time"

	tests := []struct {
		name    string
		w       *trakt.Watching
		wantErr error
	}{
		{"malformed timestamp", badTimestamp, presence.ErrInvalidTimestamp},
		{"unknown media", &trakt.Watching{Type: "show", Show: &trakt.Show{}}, presence.ErrUnsupportedMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pres := &fakePresence{}
			m, _, snaps := newTestManager(&fakeSource{watching: tt.w}, pres, time.Hour)

			if got := m.Tick(context.Background()); got != metrics.OutcomeSkipped {
				t.Fatalf("Tick() = %q, want skipped", got)
			}
			_, clears, _, applies := pres.counts()
			if applies != 0 || clears != 0 {
				t.Errorf("skipped tick touched presence: applies=%d clears=%d", applies, clears)
			}
			snap, _ := snaps.Latest()
			if snap.Error == "" {
				t.Error("snapshot should record the skip reason")
			}
			if !errors.Is(mustBuildErr(t, tt.w), tt.wantErr) {
				t.Errorf("builder error does not match %v", tt.wantErr)
			}
		})
	}
}

func mustBuildErr(t *testing.T, w *trakt.Watching) error {
	t.Helper()
	_, err := presence.NewBuilder().Build(context.Background(), w, &fakeSource{})
	return err
}

func TestTickApplyFailure(t *testing.T) {
	t.Parallel()

	pres := &fakePresence{applyErr: errors.New("discord gone")}
	m, _, snaps := newTestManager(&fakeSource{watching: inception()}, pres, time.Hour)

	if got := m.Tick(context.Background()); got != metrics.OutcomeFailed {
		t.Fatalf("Tick() = %q, want failed", got)
	}
	snap, _ := snaps.Latest()
	if snap.Error != "discord gone" || snap.Payload == nil {
		t.Errorf("snapshot = %+v", snap)
	}

	// The loop carries on: the next tick tries again.
	pres.mu.Lock()
	pres.applyErr = nil
	pres.mu.Unlock()
	if got := m.Tick(context.Background()); got != metrics.OutcomePlaying {
		t.Errorf("Tick() after recovery = %q, want playing", got)
	}
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	pres := &fakePresence{}
	m, _, _ := newTestManager(src, pres, 10*time.Millisecond)

	if err := m.Stop(); !errors.Is(err, errNotRunning) {
		t.Errorf("Stop() before Start = %v, want errNotRunning", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, errAlreadyRunning) {
		t.Errorf("second Start() = %v, want errAlreadyRunning", err)
	}
	if !m.Running() {
		t.Error("Running() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.fetchCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.fetchCount() < 3 {
		t.Fatalf("loop ran %d ticks, want at least 3", src.fetchCount())
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	connects, clears, closes, _ := pres.counts()
	if connects != 1 {
		t.Errorf("connects = %d, want 1 (before the first tick only)", connects)
	}
	if clears < 3 {
		t.Errorf("clears = %d, want one per idle tick", clears)
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1 on shutdown", closes)
	}

	ticks := src.fetchCount()
	time.Sleep(30 * time.Millisecond)
	if src.fetchCount() != ticks {
		t.Error("loop kept ticking after Stop")
	}
}

func TestManagerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	pres := &fakePresence{}
	m, _, _ := newTestManager(&fakeSource{}, pres, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		_ = m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}
}
