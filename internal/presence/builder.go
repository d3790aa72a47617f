// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

/*
Package presence turns Trakt watch state into a Discord activity and keeps
the Discord connection alive.

Builder is a pure transform from trakt.Watching to Payload; the only side
effect is the rating lookup it is handed. Connection owns the
Disconnected/Connected state machine around the IPC client, including the
connect retry policy and the one-reconnect-per-tick recovery rule.
*/
package presence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/cinecord/internal/discord"
	"github.com/tomtom215/cinecord/internal/trakt"
)

// Asset keys uploaded to the Discord application.
const (
	ImageMovies = "movies"
	ImageShows  = "shows"
	ImageRating = "rating"
)

var (
	// ErrUnsupportedMedia is returned for watch state that is neither a
	// movie nor an episode.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrInvalidTimestamp is returned when started_at or expires_at is not
	// RFC 3339.
	ErrInvalidTimestamp = errors.New("invalid watch timestamp")
)

// RatingLookup resolves 0.0-10.0 ratings. Implementations return 0 when a
// rating cannot be found.
type RatingLookup interface {
	MovieRating(ctx context.Context, slug string) float64
	EpisodeRating(ctx context.Context, showSlug string, season, number int) float64
}

// Button is a link shown under the presence.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Payload is the presence derived from one watch state. It is rebuilt on
// every tick.
type Payload struct {
	Details    string   `json:"details"`
	State      string   `json:"state"`
	LargeImage string   `json:"large_image"`
	LargeText  string   `json:"large_text"`
	SmallImage string   `json:"small_image"`
	SmallText  string   `json:"small_text"`
	Start      int64    `json:"start"`
	End        int64    `json:"end"`
	Buttons    []Button `json:"buttons,omitempty"`
}

// Activity converts the payload to its wire form.
func (p *Payload) Activity() *discord.Activity {
	a := &discord.Activity{
		Details:    p.Details,
		State:      p.State,
		Timestamps: &discord.Timestamps{Start: p.Start, End: p.End},
		Assets: &discord.Assets{
			LargeImage: p.LargeImage,
			LargeText:  p.LargeText,
			SmallImage: p.SmallImage,
			SmallText:  p.SmallText,
		},
	}
	for i, b := range p.Buttons {
		if i == discord.MaxButtons {
			break
		}
		a.Buttons = append(a.Buttons, discord.Button{Label: b.Label, URL: b.URL})
	}
	return a
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the time source used for the progress overlay.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// WithButtons toggles the IMDB/Trakt link buttons.
func WithButtons(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.buttons = enabled
	}
}

// Builder derives Payloads from watch state.
type Builder struct {
	now     func() time.Time
	buttons bool
}

// NewBuilder returns a Builder with buttons enabled and the wall clock.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now, buttons: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build derives the payload for w. Unknown media and malformed timestamps
// are reported before any rating lookup is made.
func (b *Builder) Build(ctx context.Context, w *trakt.Watching, ratings RatingLookup) (*Payload, error) {
	kind := w.Kind()
	if kind == trakt.KindUnknown {
		mediaType := ""
		if w != nil {
			mediaType = w.Type
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, mediaType)
	}

	start, err := parseTimestamp("started_at", w.StartedAt)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("expires_at", w.ExpiresAt)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		SmallImage: ImageRating,
		Start:      start.Unix(),
		End:        end.Unix(),
		LargeText:  progressText(b.now(), start, end),
	}

	var (
		rating   float64
		noun     string
		imdbID   string
		traktURL string
	)

	switch kind {
	case trakt.KindMovie:
		m := w.Movie
		p.Details = m.Title
		p.State = fmt.Sprintf("📅 %d", m.Year)
		p.LargeImage = ImageMovies
		rating = ratings.MovieRating(ctx, m.IDs.Slug)
		noun, imdbID = "movie", m.IDs.IMDB
		if m.IDs.Slug != "" {
			traktURL = "https://trakt.tv/movies/" + m.IDs.Slug
		}

	case trakt.KindEpisode:
		s, e := w.Show, w.Episode
		p.Details = s.Title
		p.State = EpisodeState(e.Season, e.Number, e.Title)
		p.LargeImage = ImageShows
		rating = ratings.EpisodeRating(ctx, s.IDs.Slug, e.Season, e.Number)
		noun, imdbID = "show", s.IDs.IMDB
		if s.IDs.Slug != "" {
			traktURL = "https://trakt.tv/shows/" + s.IDs.Slug
		}
	}

	p.SmallText = RatingText(rating)

	if b.buttons {
		if imdbID != "" {
			p.Buttons = append(p.Buttons, Button{
				Label: "View " + noun + " on IMDB",
				URL:   "https://www.imdb.com/title/" + imdbID,
			})
		}
		if traktURL != "" {
			p.Buttons = append(p.Buttons, Button{Label: "View " + noun + " on Trakt", URL: traktURL})
		}
	}

	return p, nil
}

// EpisodeState formats the state line, e.g. `1x01 "Pilot"`.
func EpisodeState(season, number int, title string) string {
	return fmt.Sprintf("%dx%02d \"%s\"", season, number, title)
}

// RatingText formats a rating for the small image overlay.
func RatingText(rating float64) string {
	return fmt.Sprintf("⭐️ %.1f/10", rating)
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidTimestamp, field, value, err)
	}
	return t, nil
}

// progressText renders the elapsed share of [start, end] at now, clamped to
// 0-100%. An empty or inverted window counts as nothing watched.
func progressText(now, start, end time.Time) string {
	watched := 0
	if total := end.Sub(start); total > 0 {
		frac := float64(now.Sub(start)) / float64(total)
		watched = int(math.Round(math.Max(0, math.Min(1, frac)) * 100))
	}
	return fmt.Sprintf("%d%% watched | %d%% remaining", watched, 100-watched)
}
