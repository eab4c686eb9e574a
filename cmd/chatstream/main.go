package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/Abraxas-365/chatstream/adapters/inmemory"
	"github.com/Abraxas-365/chatstream/adapters/novita"
	"github.com/Abraxas-365/chatstream/adapters/postgres"
	"github.com/Abraxas-365/chatstream/chathistory"
	"github.com/Abraxas-365/chatstream/config"
	"github.com/Abraxas-365/chatstream/internal/slogx"
	"github.com/Abraxas-365/chatstream/tokens"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type options struct {
	model        string
	system       string
	contextFile  string
	history      int
	postgresDSN  string
	conversation string
	verbose      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("chatstream failed", slogx.Error(err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("chatstream", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.model, "model", "m", "", "model identifier (defaults to the first supported model)")
	flagSet.StringVarP(&opts.system, "system", "s", "You are a helpful assistant. Answer using the provided context.", "system message")
	flagSet.StringVarP(&opts.contextFile, "context-file", "c", "", "file whose contents are sent as retrieved context")
	flagSet.IntVar(&opts.history, "history", 20, "number of previous turns sent with each query")
	flagSet.StringVar(&opts.postgresDSN, "postgres-dsn", "", "store chat history in PostgreSQL instead of memory")
	flagSet.StringVar(&opts.conversation, "conversation", "", "resume the conversation with this id, creating it if needed")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	logger := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(logger, &zeroslog.HandlerOptions{Level: level}),
	))
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	setupLogger(opts.verbose)

	genOpts := []novita.Option{novita.WithLogger(slog.Default())}
	counter, err := tokens.New(opts.model)
	if err != nil {
		slog.Warn("token counting disabled", slogx.Error(err))
	} else {
		genOpts = append(genOpts, novita.WithTokenCounter(counter))
	}
	generator := novita.New(genOpts...)

	defaults := generator.Config()
	overrides := config.Config{
		novita.OptionSystemMessage: {Type: config.Text, Value: opts.system},
	}
	if opts.model != "" {
		model := defaults[novita.OptionModel]
		model.Value = opts.model
		overrides[novita.OptionModel] = model
	}
	cfg := defaults.Merge(overrides)

	retrieved, err := loadContext(opts.contextFile, counter, generator.ContextWindow())
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, opts.postgresDSN)
	if err != nil {
		return err
	}
	defer closeRepo()

	memory := chathistory.New(repo, chathistory.WithReturnLimit(opts.history))
	conv, err := memory.OpenConversation(ctx, opts.conversation, map[string]any{"generator": generator.Name()})
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	slog.Info("conversation started",
		slog.String("id", conv.ID),
		slog.Int("turns", len(conv.Turns)))

	sess := &session{
		out:            out,
		generator:      generator,
		memory:         memory,
		cfg:            cfg,
		conversationID: conv.ID,
		retrieved:      retrieved,
		historyLimit:   opts.history,
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "You: ")
	for scanner.Scan() {
		quit, err := sess.handle(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		fmt.Fprint(out, "You: ")
	}
	return scanner.Err()
}

// loadContext reads the context file and trims it to the generator's window
func loadContext(path string, counter *tokens.Counter, window int) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read context file: %w", err)
	}
	if counter == nil {
		return string(data), nil
	}

	truncated, err := counter.Truncate(string(data), window)
	if err != nil {
		return "", err
	}
	if len(truncated) < len(data) {
		slog.Warn("context truncated to fit the context window", slog.Int("tokens", window))
	}
	return truncated, nil
}

func openRepository(ctx context.Context, dsn string) (chathistory.Repository, func(), error) {
	if dsn == "" {
		return inmemory.NewInMemoryRepository(), func() {}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo, err := postgres.NewPostgresRepository(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := repo.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	return repo, func() { db.Close() }, nil
}
