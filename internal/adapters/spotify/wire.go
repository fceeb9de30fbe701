package spotify

// Wire types mirror the Spotify Web API response shapes. Only the fields
// the adapter reads are declared.

type trackObject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationMs   int    `json:"duration_ms"`
	Popularity   int    `json:"popularity"`
	Explicit     bool   `json:"explicit"`
	PreviewURL   string `json:"preview_url"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

type savedTrackItem struct {
	AddedAt string      `json:"added_at"`
	Track   trackObject `json:"track"`
}

type savedTracksPage struct {
	Items []savedTrackItem `json:"items"`
	Next  string           `json:"next"`
	Total int              `json:"total"`
}

type audioFeaturesObject struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*audioFeaturesObject `json:"audio_features"`
}

type searchResponse struct {
	Tracks struct {
		Items []trackObject `json:"items"`
	} `json:"tracks"`
}

type recommendationsResponse struct {
	Tracks []trackObject `json:"tracks"`
}

type userProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

type saveTracksRequest struct {
	IDs []string `json:"ids"`
}
