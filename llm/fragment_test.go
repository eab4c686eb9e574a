package llm

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceStream struct {
	fragments []Fragment
	err       error
	closed    int
}

func (s *sliceStream) Recv() (Fragment, error) {
	if len(s.fragments) == 0 {
		if s.err != nil {
			return Fragment{}, s.err
		}
		return Fragment{}, io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *sliceStream) Close() error {
	s.closed++
	return nil
}

func TestFragments_YieldsInOrderAndCloses(t *testing.T) {
	s := &sliceStream{fragments: []Fragment{
		{Message: "Hel"},
		{Message: "lo", FinishReason: FinishStop},
	}}

	var got []Fragment
	for f, err := range Fragments(s) {
		require.NoError(t, err)
		got = append(got, f)
	}

	require.Len(t, got, 2)
	assert.False(t, got[0].Done())
	assert.True(t, got[1].Done())
	assert.Equal(t, 1, s.closed)
}

func TestFragments_BreakCloses(t *testing.T) {
	s := &sliceStream{fragments: []Fragment{{Message: "a"}, {Message: "b"}}}

	for range Fragments(s) {
		break
	}

	assert.Equal(t, 1, s.closed)
}

func TestCollect_PropagatesError(t *testing.T) {
	boom := &MalformedEventError{Message: "invalid JSON", Err: errors.New("bad")}
	s := &sliceStream{fragments: []Fragment{{Message: "partial"}}, err: boom}

	text, err := Collect(s)
	assert.Equal(t, "partial", text)

	var malformed *MalformedEventError
	assert.ErrorAs(t, err, &malformed)
}

func TestProviderError_Fragment(t *testing.T) {
	f := (&ProviderError{StatusCode: 404, Body: "not found"}).Fragment()

	assert.Equal(t, Fragment{Message: "HTTP Error 404: not found", FinishReason: FinishStop}, f)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &LLMError{Op: "GenerateStream", Code: ErrInternal, Message: "boom"})

	assert.True(t, HasCode(err, ErrInternal))
	assert.False(t, HasCode(err, ErrInvalidInput))
	assert.False(t, HasCode(errors.New("plain"), ErrInternal))
	assert.EqualError(t, err, "wrapped: llm.GenerateStream: boom")
}
