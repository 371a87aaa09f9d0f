package audioselect

import (
	"testing"

	"github.com/m3rciful/encoderbot/internal/probe"
)

func TestCandidatesFromStreams(t *testing.T) {
	got := CandidatesFromStreams([]probe.Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio", Tags: probe.Tags{Title: "Commentary", Language: "eng"}},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Category != "video" || got[0].ID != 0 {
		t.Fatalf("video candidate = %+v", got[0])
	}
	want := Candidate{ID: 1, Category: CategoryAudio, Title: "Commentary", Language: "eng"}
	if got[1] != want {
		t.Fatalf("audio candidate = %+v, want %+v", got[1], want)
	}
}
