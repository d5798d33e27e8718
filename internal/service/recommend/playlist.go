package recommend

import "strings"

// playlists maps detected moods to curated playlists. The table is
// deliberately small; moods outside it resolve to no link at all.
var playlists = map[string]string{
	"sad":       "https://open.spotify.com/playlist/37i9dQZF1DWYoYGBbGKurt",
	"happy":     "https://open.spotify.com/playlist/37i9dQZF1EIgG2NEOhqsD7",
	"surprised": "https://open.spotify.com/playlist/4k7AJ58rAxkxxdCuJ2jZOV",
	"fear":      "https://open.spotify.com/playlist/37i9dQZF1EIfTmpqlGn32s",
}

// PlaylistFor returns the playlist link suggested for a mood label,
// matched case-insensitively. Unknown moods return the empty string.
func PlaylistFor(mood string) string {
	return playlists[strings.ToLower(strings.TrimSpace(mood))]
}
