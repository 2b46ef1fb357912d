package pipeline

import (
	"math"
	"sort"
)

const (
	maxPopularity = 10.0
	maxRelevance  = 10.0
)

// NoveltyFunc contributes a per-candidate novelty score. It receives the
// candidate and its discovery index.
type NoveltyFunc func(c Candidate, index int) float64

// Score breaks down how a candidate was rated.
type Score struct {
	Popularity float64 `json:"popularity"`
	Engagement float64 `json:"engagement"`
	Novelty    float64 `json:"novelty"`
	Relevance  float64 `json:"relevance"`
}

func (s Score) Total() float64 {
	return s.Popularity + s.Engagement + s.Novelty + s.Relevance
}

// Ranked is a candidate with its computed score and final rank.
type Ranked struct {
	Candidate Candidate
	Score     Score
	Rank      int
}

// Ranker orders discovered candidates.
type Ranker struct {
	Novelty NoveltyFunc
}

// ScoreCandidate rates c, found at discovery position index.
func (r Ranker) ScoreCandidate(c Candidate, index int) Score {
	s := Score{
		Popularity: math.Min(float64(c.Views)/1_000_000, maxPopularity),
		Relevance:  math.Max(maxRelevance-float64(index), 0),
	}
	if c.Views > 0 || c.Likes > 0 {
		s.Engagement = float64(c.Likes) / math.Max(float64(c.Views)*0.05, 1) * 10
	}
	if r.Novelty != nil {
		s.Novelty = r.Novelty(c, index)
	}
	return s
}

// Rank sorts candidates by descending score and assigns ranks 1..N.
// Candidates with equal scores keep their discovery order.
func (r Ranker) Rank(candidates []Candidate) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{Candidate: c, Score: r.ScoreCandidate(c, i)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Total() > out[j].Score.Total()
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// InDiscoveryOrder ranks candidates exactly as they were discovered.
func InDiscoveryOrder(candidates []Candidate) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{Candidate: c, Rank: i + 1}
	}
	return out
}
