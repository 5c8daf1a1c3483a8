package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindDerivation(t *testing.T) {
	both := StoryItem{ImageURL: "https://x/poster.jpg", VideoURL: "https://x/clip.mp4"}
	require.Equal(t, MediaKindVideo, both.Kind(), "a present video URL wins")
	require.Equal(t, "https://x/clip.mp4", both.MediaURL())

	image := StoryItem{ImageURL: "https://x/pic.jpg"}
	require.Equal(t, MediaKindImage, image.Kind())
	require.Equal(t, "https://x/pic.jpg", image.MediaURL())

	empty := StoryItem{}
	require.Equal(t, MediaKindImage, empty.Kind())
	require.False(t, empty.HasMedia())
}

func TestBadgeFallsBackToDefault(t *testing.T) {
	require.Equal(t, "New", StoryItem{}.Badge())
	require.Equal(t, "Live", StoryItem{BadgeLabel: "Live"}.Badge())
}
