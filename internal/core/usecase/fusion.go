package usecase

import (
	"sort"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const defaultRRFK = 60

// Fuse merges per-channel rankings with reciprocal rank fusion. Every result adds 1/(k+rank)
// to its id; an empty channel adds nothing. Output is ordered by RRF score with ties kept in
// first-seen order.
func Fuse(channels [][]domain.ChannelResult, k int, label domain.MatchLabel) []domain.FusedCandidate {
	if k <= 0 {
		k = defaultRRFK
	}

	total := 0
	for _, results := range channels {
		total += len(results)
	}
	acc := make(map[string]*domain.FusedCandidate, total)
	order := make([]*domain.FusedCandidate, 0, total)

	for _, results := range channels {
		for pos, result := range results {
			candidate, ok := acc[result.ID]
			if !ok {
				candidate = &domain.FusedCandidate{
					ID:            result.ID,
					ChannelScores: make(map[domain.Channel]float64, 2),
					ChannelRanks:  make(map[domain.Channel]int, 2),
					Seq:           len(order),
				}
				acc[result.ID] = candidate
				order = append(order, candidate)
			}

			rank := result.Rank
			if rank < 1 {
				rank = pos + 1
			}
			candidate.RRFScore += 1.0 / float64(k+rank)

			if _, seen := candidate.ChannelScores[result.Channel]; !seen {
				candidate.ChannelScores[result.Channel] = result.NativeScore
				candidate.ChannelRanks[result.Channel] = rank
			}
			if len(candidate.Payload) == 0 && len(result.Payload) > 0 {
				candidate.Payload = result.Payload
			}
		}
	}

	out := make([]domain.FusedCandidate, 0, len(order))
	for _, candidate := range order {
		candidate.MatchType = matchType(candidate.ChannelScores, label)
		candidate.FinalScore = candidate.RRFScore
		out = append(out, *candidate)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func matchType(scores map[domain.Channel]float64, label domain.MatchLabel) string {
	switch len(scores) {
	case 0:
		return ""
	case 1:
		for ch := range scores {
			return string(ch)
		}
	}
	if label != domain.MatchLabelNative {
		return domain.MatchHybrid
	}

	best := ""
	bestScore := 0.0
	for _, ch := range orderedChannels(scores) {
		if score := scores[ch]; best == "" || score > bestScore {
			best = string(ch)
			bestScore = score
		}
	}
	return best
}

// orderedChannels lists known channels first in fan-out order, then any others by name.
func orderedChannels(scores map[domain.Channel]float64) []domain.Channel {
	out := make([]domain.Channel, 0, len(scores))
	for _, ch := range domain.AllChannels {
		if _, ok := scores[ch]; ok {
			out = append(out, ch)
		}
	}
	var extra []domain.Channel
	for ch := range scores {
		if ch != domain.ChannelLexical && ch != domain.ChannelSemantic {
			extra = append(extra, ch)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
