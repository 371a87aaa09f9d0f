// Package probe reads the stream listing produced by
// `ffprobe -v quiet -show_streams -of json`.
package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNoStreams is returned when the document lists no streams.
var ErrNoStreams = errors.New("probe: no streams")

// maxDocumentSize bounds the accepted ffprobe output.
const maxDocumentSize = 4 << 20

// Tags holds the stream tags the bot cares about.
type Tags struct {
	Title    string `json:"title"`
	Language string `json:"language"`
}

// Stream is one entry of the ffprobe "streams" array.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Tags      Tags   `json:"tags"`
}

type document struct {
	Streams []Stream `json:"streams"`
}

// Parse decodes ffprobe JSON output from r.
func Parse(r io.Reader) ([]Stream, error) {
	var doc document
	dec := json.NewDecoder(io.LimitReader(r, maxDocumentSize))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("probe: decode: %w", err)
	}
	if len(doc.Streams) == 0 {
		return nil, ErrNoStreams
	}
	return doc.Streams, nil
}

// OfType returns the streams whose codec_type equals codecType, in input order.
func OfType(streams []Stream, codecType string) []Stream {
	var out []Stream
	for _, s := range streams {
		if s.CodecType == codecType {
			out = append(out, s)
		}
	}
	return out
}
