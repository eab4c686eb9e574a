package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/config"
	"github.com/Abraxas-365/chatstream/llm"
)

const commandHelp = `Commands:
  /history         show the stored turns of this conversation
  /search <text>   show turns containing text
  /clear           forget every turn of this conversation
  /help            show this help
  exit, quit       leave
`

// session is one interactive conversation
type session struct {
	out            io.Writer
	generator      llm.Generator
	memory         *chathistory.Memory
	cfg            config.Config
	conversationID string
	retrieved      string
	historyLimit   int
}

// handle runs one input line. quit is true when the user asked to leave.
func (s *session) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")

	switch command {
	case "":
		return false, nil
	case "exit", "quit":
		return true, nil
	case "/help":
		fmt.Fprint(s.out, commandHelp)
		return false, nil
	case "/history":
		conv, err := s.memory.GetConversation(ctx, s.conversationID)
		if err != nil {
			return false, err
		}
		s.printTurns(conv.Turns)
		return false, nil
	case "/search":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			fmt.Fprintln(s.out, "usage: /search <text>")
			return false, nil
		}
		filter := chathistory.Filter{Search: arg}
		turns, err := s.memory.TurnsByFilter(ctx, s.conversationID, filter)
		if err != nil {
			return false, err
		}
		total, err := s.memory.TurnCount(ctx, s.conversationID, filter)
		if err != nil {
			return false, err
		}
		s.printTurns(turns)
		if total > len(turns) {
			fmt.Fprintf(s.out, "(showing the last %d of %d matching turns)\n", len(turns), total)
		}
		return false, nil
	case "/clear":
		if err := s.memory.ClearHistory(ctx, s.conversationID); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "History cleared.")
		return false, nil
	}

	return false, s.answer(ctx, line)
}

func (s *session) printTurns(turns []llm.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(s.out, "(no turns)")
		return
	}
	fmt.Fprint(s.out, llm.TurnsToString(turns))
}

// answer streams the reply to query and records the exchange once the
// stream has ended
func (s *session) answer(ctx context.Context, query string) error {
	turns, err := s.memory.Turns(ctx, s.conversationID, s.historyLimit)
	if err != nil {
		return err
	}

	stream, err := s.generator.GenerateStream(ctx, s.cfg, query, s.retrieved, turns)
	if err != nil {
		return err
	}

	fmt.Fprint(s.out, "Assistant: ")
	var sb strings.Builder
	for fragment, err := range llm.Fragments(stream) {
		if err != nil {
			fmt.Fprintln(s.out)
			return err
		}
		fmt.Fprint(s.out, fragment.Message)
		sb.WriteString(fragment.Message)
	}
	fmt.Fprintln(s.out)

	return s.memory.RecordExchange(ctx, s.conversationID, query, sb.String())
}
