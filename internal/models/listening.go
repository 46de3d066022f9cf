package models

// Track represents a top track from the listening-history provider
type Track struct {
	ID      string
	Name    string
	Artists []string // Artist names in credit order
}

// Artist represents a top artist from the listening-history provider
type Artist struct {
	ID       string
	Name     string
	Genres   []string
	ImageURL string
}

// AudioFeatures holds the per-track audio descriptors used for the audio dimensions.
//
// Valence, Energy, Danceability, Acousticness and Instrumentalness are unit-scaled.
// Tempo is in BPM and Loudness in dB (typically -60..0).
type AudioFeatures struct {
	TrackID          string
	Valence          float64
	Energy           float64
	Danceability     float64
	Acousticness     float64
	Instrumentalness float64
	Tempo            float64
	Loudness         float64
}
