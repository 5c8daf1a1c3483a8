package domain

import (
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

const DefaultBadgeLabel = "New"

// StoryItem is a single ephemeral content unit shown in the story feed.
type StoryItem struct {
	ID              uuid.UUID
	Title           string
	ImageURL        string
	VideoURL        string
	AuthorName      string
	AuthorAvatarURL string
	BadgeLabel      string
	ViewCount       int
	IsActive        bool
	CreatedAt       time.Time
}

// Kind derives the media kind: a present video URL wins over the image.
func (s StoryItem) Kind() MediaKind {
	if s.VideoURL != "" {
		return MediaKindVideo
	}
	return MediaKindImage
}

// MediaURL returns the authoritative media source for the item's kind.
func (s StoryItem) MediaURL() string {
	if s.Kind() == MediaKindVideo {
		return s.VideoURL
	}
	return s.ImageURL
}

func (s StoryItem) HasMedia() bool {
	return s.MediaURL() != ""
}

// Badge returns the display badge, falling back to the default label.
func (s StoryItem) Badge() string {
	if s.BadgeLabel == "" {
		return DefaultBadgeLabel
	}
	return s.BadgeLabel
}
