package llm

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// FinishStop is the finish indicator carried by the last fragment of a stream
const FinishStop = "stop"

// Fragment is one unit of incremental answer text.
// An empty FinishReason means more fragments follow.
type Fragment struct {
	Message      string `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Done reports whether the fragment closes the stream
func (f Fragment) Done() bool {
	return f.FinishReason != ""
}

// Fragments adapts a Stream to a range-over-func loop. The stream is closed
// when the loop ends, including on break. A non-EOF error is yielded once as
// the final pair.
func Fragments(s Stream) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		defer s.Close()
		for {
			fragment, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Fragment{}, err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Collect drains the stream and returns the concatenated answer
func Collect(s Stream) (string, error) {
	var sb strings.Builder
	for fragment, err := range Fragments(s) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment.Message)
	}
	return sb.String(), nil
}
