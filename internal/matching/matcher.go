// package matching scores catalog candidates against requested (title, artist) pairs
package matching

import "github.com/desertthunder/flacsync/internal/models"

const (
	TitleWeight     = 0.6
	ArtistWeight    = 0.4
	ConfidenceFloor = 0.3
)

// Match is a candidate together with its score.
type Match struct {
	Track models.Track
	Score float64
}

// Score rates how well a candidate matches the requested title and artist, in [0, 1].
//
// Each part is the share of requested tokens found in the candidate's tokens.
func Score(title, artist string, candidate models.Track) float64 {
	return score(NormalizedWords(title), NormalizedWords(artist), candidate)
}

func score(titleWords, artistWords Words, candidate models.Track) float64 {
	titleScore := float64(titleWords.Overlap(NormalizedWords(candidate.Title))) / float64(max(len(titleWords), 1))
	artistScore := float64(artistWords.Overlap(NormalizedWords(candidate.Artist))) / float64(max(len(artistWords), 1))
	return TitleWeight*titleScore + ArtistWeight*artistScore
}

// Rank scores every candidate in input order.
func Rank(title, artist string, candidates []models.Track) []Match {
	titleWords, artistWords := NormalizedWords(title), NormalizedWords(artist)
	ranked := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Match{Track: c, Score: score(titleWords, artistWords, c)})
	}
	return ranked
}

// BestMatch picks the highest scoring candidate. Ties keep the earliest candidate.
// It reports false when there are no candidates or the best score is below [ConfidenceFloor].
func BestMatch(title, artist string, candidates []models.Track) (Match, bool) {
	var best Match
	found := false
	for _, m := range Rank(title, artist, candidates) {
		if !found || m.Score > best.Score {
			best, found = m, true
		}
	}
	if !found || best.Score < ConfidenceFloor {
		return Match{}, false
	}
	return best, true
}
