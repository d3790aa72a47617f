// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package presence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cinecord/internal/trakt"
)

const (
	t0     = "2024-03-10T20:00:00.000Z"
	t0Plus = "2024-03-10T22:00:00.000Z" // t0 + 7200s
)

var t0Time = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

// fakeRatings records every lookup.
type fakeRatings struct {
	mu      sync.Mutex
	rating  float64
	movies  []string
	episode []string
}

func (f *fakeRatings) MovieRating(_ context.Context, slug string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movies = append(f.movies, slug)
	return f.rating
}

func (f *fakeRatings) EpisodeRating(_ context.Context, showSlug string, _, _ int) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episode = append(f.episode, showSlug)
	return f.rating
}

func (f *fakeRatings) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.movies) + len(f.episode)
}

func inception() *trakt.Watching {
	return &trakt.Watching{
		StartedAt: t0,
		ExpiresAt: t0Plus,
		Type:      "movie",
		Movie: &trakt.Movie{
			Title: "Inception",
			Year:  2010,
			IDs:   trakt.IDs{Trakt: 16662, Slug: "inception-2010", IMDB: "tt1375666"},
		},
	}
}

func pilot(number int) *trakt.Watching {
	return &trakt.Watching{
		StartedAt: t0,
		ExpiresAt: t0Plus,
		Type:      "episode",
		Show: &trakt.Show{
			Title: "Breaking Bad",
			Year:  2008,
			IDs:   trakt.IDs{Slug: "breaking-bad", IMDB: "tt0903747"},
		},
		Episode: &trakt.Episode{Season: 1, Number: number, Title: "Pilot"},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuildMovie(t *testing.T) {
	t.Parallel()

	ratings := &fakeRatings{rating: 8.8}
	p, err := NewBuilder(WithClock(fixedClock(t0Time))).Build(context.Background(), inception(), ratings)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	checks := []struct{ field, got, want string }{
		{"Details", p.Details, "Inception"},
		{"State", p.State, "📅 2010"},
		{"LargeImage", p.LargeImage, "movies"},
		{"SmallImage", p.SmallImage, "rating"},
		{"SmallText", p.SmallText, "⭐️ 8.8/10"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if p.Start != t0Time.Unix() || p.End != t0Time.Add(2*time.Hour).Unix() {
		t.Errorf("timestamps = %d..%d, want %d..%d", p.Start, p.End, t0Time.Unix(), t0Time.Add(2*time.Hour).Unix())
	}
	if len(ratings.movies) != 1 || ratings.movies[0] != "inception-2010" {
		t.Errorf("movie lookups = %v", ratings.movies)
	}
}

func TestBuildEpisode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		number    int
		wantState string
	}{
		{1, `1x01 "Pilot"`},
		{9, `1x09 "Pilot"`},
		{10, `1x10 "Pilot"`},
		{123, `1x123 "Pilot"`},
	}

	for _, tt := range tests {
		t.Run(tt.wantState, func(t *testing.T) {
			t.Parallel()

			ratings := &fakeRatings{rating: 9.0}
			p, err := NewBuilder().Build(context.Background(), pilot(tt.number), ratings)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if p.State != tt.wantState {
				t.Errorf("State = %q, want %q", p.State, tt.wantState)
			}
			if p.Details != "Breaking Bad" || p.LargeImage != "shows" {
				t.Errorf("Details/LargeImage = %q/%q", p.Details, p.LargeImage)
			}
			if p.SmallText != "⭐️ 9.0/10" {
				t.Errorf("SmallText = %q", p.SmallText)
			}
			if len(ratings.episode) != 1 || ratings.episode[0] != "breaking-bad" {
				t.Errorf("episode lookups = %v", ratings.episode)
			}
		})
	}
}

func TestBuildButtons(t *testing.T) {
	t.Parallel()

	noIMDB := inception()
	noIMDB.Movie.IDs.IMDB = ""

	noIDs := pilot(1)
	noIDs.Show.IDs = trakt.IDs{}

	tests := []struct {
		name string
		w    *trakt.Watching
		opts []BuilderOption
		want []Button
	}{
		{
			name: "movie with imdb",
			w:    inception(),
			want: []Button{
				{Label: "View movie on IMDB", URL: "https://www.imdb.com/title/tt1375666"},
				{Label: "View movie on Trakt", URL: "https://trakt.tv/movies/inception-2010"},
			},
		},
		{
			name: "movie without imdb",
			w:    noIMDB,
			want: []Button{
				{Label: "View movie on Trakt", URL: "https://trakt.tv/movies/inception-2010"},
			},
		},
		{
			name: "show",
			w:    pilot(1),
			want: []Button{
				{Label: "View show on IMDB", URL: "https://www.imdb.com/title/tt0903747"},
				{Label: "View show on Trakt", URL: "https://trakt.tv/shows/breaking-bad"},
			},
		},
		{name: "show without ids", w: noIDs, want: nil},
		{name: "buttons disabled", w: inception(), opts: []BuilderOption{WithButtons(false)}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewBuilder(tt.opts...).Build(context.Background(), tt.w, &fakeRatings{})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(p.Buttons) != len(tt.want) {
				t.Fatalf("Buttons = %+v, want %+v", p.Buttons, tt.want)
			}
			for i := range tt.want {
				if p.Buttons[i] != tt.want[i] {
					t.Errorf("Buttons[%d] = %+v, want %+v", i, p.Buttons[i], tt.want[i])
				}
				if strings.TrimSpace(p.Buttons[i].Label) == "" || strings.TrimSpace(p.Buttons[i].URL) == "" {
					t.Errorf("Buttons[%d] carries placeholder text", i)
				}
			}
		})
	}
}

func TestBuildRejectsUnknownMedia(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w    *trakt.Watching
	}{
		{"nil", nil},
		{"show type", &trakt.Watching{Type: "show", StartedAt: t0, ExpiresAt: t0Plus, Show: &trakt.Show{}}},
		{"episode without payload", &trakt.Watching{Type: "episode", StartedAt: t0, ExpiresAt: t0Plus}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ratings := &fakeRatings{}
			p, err := NewBuilder().Build(context.Background(), tt.w, ratings)
			if !errors.Is(err, ErrUnsupportedMedia) {
				t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
			}
			if p != nil {
				t.Errorf("expected no payload, got %+v", p)
			}
			if ratings.lookups() != 0 {
				t.Error("unknown media must not trigger a rating lookup")
			}
		})
	}
}

func TestBuildRejectsMalformedTimestamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*trakt.Watching)
	}{
		{"bad started_at", func(w *trakt.Watching) { w.StartedAt = "yesterday" }},
		{"empty expires_at", func(w *trakt.Watching) { w.ExpiresAt = "" }},
		{"missing zone", func(w *trakt.Watching) { w.StartedAt = "2024-03-10T20:00:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := inception()
			tt.mutate(w)
			ratings := &fakeRatings{}
			_, err := NewBuilder().Build(context.Background(), w, ratings)
			if !errors.Is(err, ErrInvalidTimestamp) {
				t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
			}
			if ratings.lookups() != 0 {
				t.Error("malformed timestamps must be rejected before the rating lookup")
			}
		})
	}
}

func TestProgressText(t *testing.T) {
	t.Parallel()

	end := t0Time.Add(2 * time.Hour)
	tests := []struct {
		name string
		now  time.Time
		end  time.Time
		want string
	}{
		{"start", t0Time, end, "0% watched | 100% remaining"},
		{"quarter", t0Time.Add(30 * time.Minute), end, "25% watched | 75% remaining"},
		{"half", t0Time.Add(time.Hour), end, "50% watched | 50% remaining"},
		{"before start clamps", t0Time.Add(-time.Hour), end, "0% watched | 100% remaining"},
		{"past expiry clamps", end.Add(time.Hour), end, "100% watched | 0% remaining"},
		{"empty window", t0Time, t0Time, "0% watched | 100% remaining"},
		{"inverted window", t0Time, t0Time.Add(-time.Hour), "0% watched | 100% remaining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := progressText(tt.now, t0Time, tt.end); got != tt.want {
				t.Errorf("progressText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildUsesClockForProgress(t *testing.T) {
	t.Parallel()

	now := t0Time.Add(90 * time.Minute)
	p, err := NewBuilder(WithClock(fixedClock(now))).Build(context.Background(), inception(), &fakeRatings{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.LargeText != "75% watched | 25% remaining" {
		t.Errorf("LargeText = %q", p.LargeText)
	}
}

func TestRatingText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rating float64
		want   string
	}{
		{8.8, "⭐️ 8.8/10"},
		{0, "⭐️ 0.0/10"},
		{7.46, "⭐️ 7.5/10"},
		{10, "⭐️ 10.0/10"},
	}
	for _, tt := range tests {
		if got := RatingText(tt.rating); got != tt.want {
			t.Errorf("RatingText(%v) = %q, want %q", tt.rating, got, tt.want)
		}
	}
}

func TestPayloadActivity(t *testing.T) {
	t.Parallel()

	p := &Payload{
		Details:    "Inception",
		State:      "📅 2010",
		LargeImage: "movies",
		LargeText:  "50% watched | 50% remaining",
		SmallImage: "rating",
		SmallText:  "⭐️ 8.8/10",
		Start:      100,
		End:        200,
		Buttons: []Button{
			{Label: "a", URL: "https://a"},
			{Label: "b", URL: "https://b"},
			{Label: "c", URL: "https://c"},
		},
	}

	a := p.Activity()
	if a.Details != p.Details || a.State != p.State {
		t.Errorf("text fields not copied: %+v", a)
	}
	if a.Timestamps.Start != 100 || a.Timestamps.End != 200 {
		t.Errorf("Timestamps = %+v", a.Timestamps)
	}
	if a.Assets.LargeText != p.LargeText || a.Assets.SmallText != p.SmallText {
		t.Errorf("Assets = %+v", a.Assets)
	}
	if len(a.Buttons) != 2 {
		t.Errorf("len(Buttons) = %d, want 2 (Discord limit)", len(a.Buttons))
	}
}
