package audioselect

import "github.com/m3rciful/encoderbot/internal/probe"

// CandidatesFromStreams maps probed streams to session candidates.
func CandidatesFromStreams(streams []probe.Stream) []Candidate {
	out := make([]Candidate, 0, len(streams))
	for _, s := range streams {
		out = append(out, Candidate{
			ID:       s.Index,
			Category: s.CodecType,
			Title:    s.Tags.Title,
			Language: s.Tags.Language,
		})
	}
	return out
}
