// package taste compresses raw listening history into a [models.TasteProfile].
//
// Everything here is a pure transform: no I/O and no state. Callers fetch listening
// data from a provider and persist the result.
package taste

import (
	"cmp"
	"slices"
	"time"

	"github.com/desertthunder/chord/internal/models"
)

const unknownArtist = "Unknown"

// Listening is the raw input to [Build].
//
// Features may cover only some of the tracks; tracks without descriptors are simply
// absent from the slice.
type Listening struct {
	Tracks   []models.Track
	Artists  []models.Artist
	Features []models.AudioFeatures
}

// Build computes the embedding and the display summaries from the same listening data.
// Empty input degrades to a zero embedding and empty summaries.
func Build(in Listening, syncedAt time.Time) models.TasteProfile {
	embedding := make([]float64, 0, models.EmbeddingDims)
	embedding = append(embedding, AudioVector(in.Features)...)
	embedding = append(embedding, GenreVector(in.Artists)...)

	return models.TasteProfile{
		Embedding:  embedding,
		TopArtists: TopArtists(in.Artists),
		TopGenres:  TopGenres(in.Artists),
		TopTracks:  TopTracks(in.Tracks),
		LastSync:   syncedAt.UTC(),
	}
}

// AudioVector averages the seven audio descriptors across tracks.
//
// Tempo is divided by 200 and loudness shifted by 60 dB then divided by 60. Each value
// is clamped to [0,1] before averaging so out-of-range tracks cannot push a dimension
// outside the unit interval.
func AudioVector(features []models.AudioFeatures) []float64 {
	vec := make([]float64, models.AudioDims)
	if len(features) == 0 {
		return vec
	}

	for _, f := range features {
		for i, v := range normalizeAudio(f) {
			vec[i] += v
		}
	}
	n := float64(len(features))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func normalizeAudio(f models.AudioFeatures) [models.AudioDims]float64 {
	return [models.AudioDims]float64{
		clamp01(f.Valence),
		clamp01(f.Energy),
		clamp01(f.Danceability),
		clamp01(f.Acousticness),
		clamp01(f.Instrumentalness),
		clamp01(f.Tempo / 200),
		clamp01((f.Loudness + 60) / 60),
	}
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}

// GenreVector is the frequency of the ten most common genres, divided by the count of
// the most common one. Unused positions are zero.
func GenreVector(artists []models.Artist) []float64 {
	vec := make([]float64, models.GenreDims)
	counts := genreCounts(artists)
	if len(counts) == 0 {
		return vec
	}

	top := float64(counts[0].count)
	for i, g := range counts[:min(len(counts), models.GenreDims)] {
		vec[i] = float64(g.count) / top
	}
	return vec
}

// TopGenres returns the five most common genres weighted by the fraction of artists
// that carry them. This is not the max normalization used by [GenreVector].
func TopGenres(artists []models.Artist) []models.GenreWeight {
	counts := genreCounts(artists)
	genres := make([]models.GenreWeight, 0, min(len(counts), models.MaxTopGenres))
	for _, g := range counts[:min(len(counts), models.MaxTopGenres)] {
		genres = append(genres, models.GenreWeight{
			Name:   g.name,
			Weight: float64(g.count) / float64(len(artists)),
		})
	}
	return genres
}

// TopArtists summarizes the first ten artists in provider order.
func TopArtists(artists []models.Artist) []models.ArtistSummary {
	out := make([]models.ArtistSummary, 0, min(len(artists), models.MaxTopArtists))
	for _, a := range artists[:min(len(artists), models.MaxTopArtists)] {
		out = append(out, models.ArtistSummary{
			Name:      a.Name,
			SpotifyID: a.ID,
			ImageURL:  a.ImageURL,
			Genres:    slices.Clone(a.Genres),
		})
	}
	return out
}

// TopTracks summarizes the first five tracks in provider order, credited to their
// first artist.
func TopTracks(tracks []models.Track) []models.TrackSummary {
	out := make([]models.TrackSummary, 0, min(len(tracks), models.MaxTopTracks))
	for _, t := range tracks[:min(len(tracks), models.MaxTopTracks)] {
		artist := unknownArtist
		if len(t.Artists) > 0 && t.Artists[0] != "" {
			artist = t.Artists[0]
		}
		out = append(out, models.TrackSummary{Name: t.Name, Artist: artist, SpotifyID: t.ID})
	}
	return out
}

type genreCount struct {
	name  string
	count int
	first int
}

// genreCounts tallies genres across artists, most frequent first. Ties keep the order
// in which genres were first seen.
func genreCounts(artists []models.Artist) []genreCount {
	index := make(map[string]int)
	var counts []genreCount
	for _, a := range artists {
		for _, g := range a.Genres {
			if i, ok := index[g]; ok {
				counts[i].count++
				continue
			}
			index[g] = len(counts)
			counts = append(counts, genreCount{name: g, count: 1, first: len(counts)})
		}
	}

	slices.SortStableFunc(counts, func(a, b genreCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})
	return counts
}
