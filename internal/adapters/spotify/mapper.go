package spotify

import (
	"strings"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// mapTrack converts a wire track to a domain track. features may be nil
// when the endpoint does not carry them.
func mapTrack(wt trackObject, features *audioFeaturesObject) domain.Track {
	var artistNames []string
	for _, a := range wt.Artists {
		artistNames = append(artistNames, a.Name)
	}

	imageURL := ""
	if len(wt.Album.Images) > 0 {
		imageURL = wt.Album.Images[0].URL
	}

	t := domain.Track{
		SpotifyID:   wt.ID,
		Name:        wt.Name,
		Artist:      strings.Join(artistNames, ", "),
		Album:       wt.Album.Name,
		DurationMs:  wt.DurationMs,
		Popularity:  wt.Popularity,
		Explicit:    wt.Explicit,
		PreviewURL:  wt.PreviewURL,
		ExternalURL: wt.ExternalURLs.Spotify,
		ImageURL:    imageURL,
		ReleaseDate: wt.Album.ReleaseDate,
	}
	if features != nil {
		f := mapFeatures(*features)
		t.Features = &f
	}
	return t
}

func mapSavedTrack(item savedTrackItem) domain.Track {
	t := mapTrack(item.Track, nil)
	if added, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
		t.AddedAt = added
	}
	return t
}

func mapFeatures(wf audioFeaturesObject) domain.AudioFeatures {
	return domain.AudioFeatures{
		Acousticness:     wf.Acousticness,
		Danceability:     wf.Danceability,
		Energy:           wf.Energy,
		Instrumentalness: wf.Instrumentalness,
		Liveness:         wf.Liveness,
		Loudness:         wf.Loudness,
		Speechiness:      wf.Speechiness,
		Tempo:            wf.Tempo,
		Valence:          wf.Valence,
		Key:              wf.Key,
		Mode:             wf.Mode,
		TimeSignature:    wf.TimeSignature,
	}
}
