package recommend_test

import (
	"testing"

	"github.com/mirror-labs/mirror/backend/internal/service/recommend"
)

func TestPlaylistForKnownMoods(t *testing.T) {
	for _, mood := range []string{"sad", "happy", "surprised", "fear"} {
		if recommend.PlaylistFor(mood) == "" {
			t.Fatalf("expected a playlist for %q", mood)
		}
	}
}

func TestPlaylistForIsCaseInsensitive(t *testing.T) {
	if recommend.PlaylistFor("HAPPY") != recommend.PlaylistFor("happy") {
		t.Fatal("lookup should ignore case")
	}
	if recommend.PlaylistFor(" Sad ") != recommend.PlaylistFor("sad") {
		t.Fatal("lookup should ignore surrounding whitespace")
	}
}

func TestPlaylistForUnknownMood(t *testing.T) {
	for _, mood := range []string{"angry", "disgust", "", "neutral"} {
		if got := recommend.PlaylistFor(mood); got != "" {
			t.Fatalf("expected no link for %q, got %q", mood, got)
		}
	}
}
