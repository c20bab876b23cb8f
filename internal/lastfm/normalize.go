package lastfm

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tuneline/tuneline/internal/store"
)

// Placeholders for records the source delivers without names. Source data
// integrity is not guaranteed.
const (
	UnknownArtist = "Unknown Artist"
	UnknownTrack  = "Unknown Track"
)

// artworkSize is the largest size variant the recent-tracks endpoint tags.
const artworkSize = "extralarge"

// Normalize converts a raw track record into a canonical listen event for
// the given user.
func Normalize(user string, t Track) (store.Scrobble, error) {
	uts, err := strconv.ParseInt(t.UTS, 10, 64)
	if err != nil {
		return store.Scrobble{}, fmt.Errorf("parsing listen timestamp %q: %w", t.UTS, err)
	}

	artist := t.Artist
	if artist == "" {
		artist = UnknownArtist
	}
	name := t.Name
	if name == "" {
		name = UnknownTrack
	}

	return store.Scrobble{
		User:       user,
		Artist:     artist,
		Album:      t.Album,
		Track:      name,
		ListenedAt: time.Unix(uts, 0),
		ArtworkURL: artworkURL(t.Images),
	}, nil
}

// artworkURL selects the highest-resolution artwork present, or empty if the
// record carries no usable image.
func artworkURL(images []Image) string {
	for _, img := range images {
		if img.Size == artworkSize && img.URL != "" {
			return img.URL
		}
	}
	return ""
}
