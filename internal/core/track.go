package core

import (
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Track represents the track currently loaded on the speaker.
type Track struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	CoverURL   string   `json:"cover_url,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// trackKey is the part of a track that identifies it.
type trackKey struct {
	Name       string
	Album      string
	DurationMs int64
}

// Identity returns a hash of (name, album, duration). Two snapshots of the
// same track hash equal even if cover art or artist formatting differ.
func (t *Track) Identity() uint64 {
	if t == nil {
		return 0
	}
	h, err := hashstructure.Hash(trackKey{t.Name, t.Album, t.DurationMs}, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

// SameAs reports whether t and other identify the same track.
func (t *Track) SameAs(other *Track) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Name == other.Name && t.Album == other.Album && t.DurationMs == other.DurationMs
}

// Artist returns the artists joined for display.
func (t *Track) Artist() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Artists, ", ")
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	c.Artists = append([]string(nil), t.Artists...)
	return &c
}
