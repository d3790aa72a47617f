// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package trakt

// MediaKind is the discriminator of a Watching record.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindMovie
	KindEpisode
)

func (k MediaKind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// IDs is the identifier set Trakt attaches to every movie, show and episode.
// Zero values mean the title is not catalogued on that service.
type IDs struct {
	Trakt  int    `json:"trakt"`
	Slug   string `json:"slug,omitempty"`
	IMDB   string `json:"imdb,omitempty"`
	TMDB   int    `json:"tmdb,omitempty"`
	TVDB   int    `json:"tvdb,omitempty"`
	TVRage int    `json:"tvrage,omitempty"`
}

// Movie is a Trakt movie summary.
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show is a Trakt show summary.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Episode is a Trakt episode summary.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

// Watching is the body of GET /users/{id}/watching.
//
// Timestamps stay as raw strings so a malformed value surfaces when the
// presence is built instead of being mistaken for "nothing playing".
type Watching struct {
	ExpiresAt string   `json:"expires_at"`
	StartedAt string   `json:"started_at"`
	Action    string   `json:"action"` // scrobble, checkin, watch
	Type      string   `json:"type"`   // movie, episode
	Movie     *Movie   `json:"movie,omitempty"`
	Show      *Show    `json:"show,omitempty"`
	Episode   *Episode `json:"episode,omitempty"`
}

// Kind reports the media kind, or KindUnknown when the type tag and the
// populated payload disagree.
func (w *Watching) Kind() MediaKind {
	if w == nil {
		return KindUnknown
	}
	switch w.Type {
	case "movie":
		if w.Movie != nil {
			return KindMovie
		}
	case "episode":
		if w.Episode != nil && w.Show != nil {
			return KindEpisode
		}
	}
	return KindUnknown
}

// Ratings is the body of the /ratings endpoints.
type Ratings struct {
	Rating       float64        `json:"rating"`
	Votes        int            `json:"votes"`
	Distribution map[string]int `json:"distribution"`
}
