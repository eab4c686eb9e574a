package novita

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/Abraxas-365/chatstream/internal/slogx"
	"github.com/Abraxas-365/chatstream/llm"
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// StreamState tracks a response through its lifetime
type StreamState int

const (
	AwaitingStatus StreamState = iota
	Streaming
	Done
	Failed
)

func (s StreamState) String() string {
	switch s {
	case AwaitingStatus:
		return "awaiting_status"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

const (
	// markerLen is the width of the "data:" prefix on every event line
	markerLen = 5

	doneSentinel = "[DONE]"

	maxLineSize = 1 << 20
)

var errEndOfStream = errors.New("end of stream")

// event is one decoded line of the response
type event struct {
	Content      string
	FinishReason string
}

// parseEvent decodes a non-blank, trimmed event line. Only the first choice
// is read; every other field of the payload is ignored.
func parseEvent(line string) (event, error) {
	payload := ""
	if len(line) > markerLen {
		payload = line[markerLen:]
	}
	// OpenAI-compatible providers may close with "[DONE]" instead of, or
	// after, a stop choice; it carries no content and ends the stream.
	if strings.TrimSpace(payload) == doneSentinel {
		return event{}, errEndOfStream
	}

	data := []byte(payload)
	if !gjson.ValidBytes(data) {
		return event{}, &llm.MalformedEventError{
			Line:    line,
			Message: "invalid JSON payload",
		}
	}

	choice := gjson.GetBytes(data, "choices.0")
	if !choice.IsObject() {
		return event{}, &llm.MalformedEventError{
			Line:    line,
			Message: "missing choices[0]",
		}
	}

	ev := event{Content: choice.Get("delta.content").String()}
	if openai.FinishReason(choice.Get("finish_reason").String()) == openai.FinishReasonStop {
		ev.FinishReason = llm.FinishStop
	}
	return ev, nil
}

// stream reads one line per Recv so the body is never consumed faster than
// the caller asks for fragments. Close may be called from another goroutine
// while Recv is blocked on the body.
type stream struct {
	resp    *http.Response
	scanner *bufio.Scanner
	state   atomic.Int32
	logger  *slog.Logger
	closed  atomic.Bool
}

func newStream(resp *http.Response, logger *slog.Logger) *stream {
	s := &stream{
		resp:   resp,
		logger: logger,
	}
	s.state.Store(int32(AwaitingStatus))
	return s
}

func (s *stream) State() StreamState {
	state := StreamState(s.state.Load())
	if s.closed.Load() && (state == AwaitingStatus || state == Streaming) {
		return Done
	}
	return state
}

func (s *stream) Recv() (llm.Fragment, error) {
	if s.closed.Load() {
		s.setTerminal(Done)
		return llm.Fragment{}, io.EOF
	}

	if s.State() == AwaitingStatus {
		if s.resp.StatusCode != http.StatusOK {
			return s.providerError()
		}
		s.scanner = bufio.NewScanner(s.resp.Body)
		s.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		s.state.Store(int32(Streaming))
	}

	if s.State() != Streaming {
		return llm.Fragment{}, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		ev, err := parseEvent(line)
		if errors.Is(err, errEndOfStream) {
			s.finish(Done)
			return llm.Fragment{}, io.EOF
		}
		if err != nil {
			s.logger.Error("aborting stream", slogx.Error(err))
			s.finish(Failed)
			return llm.Fragment{}, err
		}

		if ev.FinishReason != "" {
			s.finish(Done)
		}
		return llm.Fragment{
			Message:      ev.Content,
			FinishReason: ev.FinishReason,
		}, nil
	}

	// A read failing because the caller closed the stream is a normal stop
	if s.closed.Load() {
		s.setTerminal(Done)
		return llm.Fragment{}, io.EOF
	}
	if err := s.scanner.Err(); err != nil {
		s.finish(Failed)
		return llm.Fragment{}, &llm.TransportError{Op: "Recv", Err: err}
	}

	s.finish(Done)
	return llm.Fragment{}, io.EOF
}

// providerError turns a non-200 response into the terminal fragment
func (s *stream) providerError() (llm.Fragment, error) {
	defer s.finish(Failed)

	body, err := io.ReadAll(s.resp.Body)
	if err != nil {
		return llm.Fragment{}, &llm.TransportError{Op: "Recv", Err: err}
	}

	perr := &llm.ProviderError{
		StatusCode: s.resp.StatusCode,
		Body:       string(body),
	}
	s.logger.Warn("provider returned error status", slog.Int("status", perr.StatusCode))
	return perr.Fragment(), nil
}

// setTerminal moves a live stream to state; terminal states are kept
func (s *stream) setTerminal(state StreamState) {
	for {
		current := s.state.Load()
		if StreamState(current) == Done || StreamState(current) == Failed {
			return
		}
		if s.state.CompareAndSwap(current, int32(state)) {
			return
		}
	}
}

func (s *stream) finish(state StreamState) {
	s.setTerminal(state)
	s.Close()
}

// Close releases the response body. It is safe to call more than once and
// concurrently with Recv; afterwards Recv returns io.EOF.
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.resp.Body.Close()
}
