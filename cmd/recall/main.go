// Copyright 2025 The Recall Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kentyler/recall"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "recall",
		Usage: "Turn live meeting transcripts into ordered, embedded turns",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Read JSON-lines transcript chunks into one session",
				ArgsUsage: "[file]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "client",
						Usage:    "Client the session belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID (a new UUID if omitted)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of turns embedded in parallel (overrides pipeline.concurrency)",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Print a client's turns in order",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "client",
						Usage:    "Client whose turns to print",
						Required: true,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print processing statistics for a session",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Usage:    "Session to summarize",
						Required: true,
					},
				},
			},
			{
				Name:   "backfill",
				Usage:  "Embed every turn stored without an embedding",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "analyze",
						Usage: "Only report how many turns are missing and the estimated cost",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last checkpoint",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of turns to embed per request (overrides backfill.batch_size)",
					},
					&cli.DurationFlag{
						Name:  "batch-delay",
						Usage: "Pause between batches (overrides backfill.batch_delay)",
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Check that the embedding provider returns usable vectors",
				Action: healthCommand,
			},
		},
	}
}

// chunkLine is one line of ingest input.
type chunkLine struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// readChunks decodes JSON-lines chunks, skipping blank lines.
func readChunks(r io.Reader, fn func(core.Chunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var chunk chunkLine
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(core.Chunk{Speaker: chunk.Speaker, Text: chunk.Text, Timestamp: chunk.Timestamp}); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

// ingestTally counts pipeline outcomes. A turn stored without an embedding
// is stored, not failed.
type ingestTally struct {
	stored     atomic.Int64
	unembedded atomic.Int64
	failed     atomic.Int64
}

func (t *ingestTally) record(result ingestion.Result) {
	switch {
	case result.Err != nil:
		t.failed.Add(1)
	case !result.Turn.HasEmbedding():
		t.stored.Add(1)
		t.unembedded.Add(1)
	default:
		t.stored.Add(1)
	}
}

func (t *ingestTally) String() string {
	return fmt.Sprintf("%d stored (%d without embedding), %d failed",
		t.stored.Load(), t.unembedded.Load(), t.failed.Load())
}

func openDatabase(c *cli.Context) (*recall.Database, *recall.Config, error) {
	cfg, err := recall.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if dbPath := c.String("db"); dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	db, err := recall.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context

	input := io.Reader(os.Stdin)
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	concurrency := cfg.Pipeline.Concurrency
	if c.IsSet("concurrency") {
		concurrency = c.Int("concurrency")
	}

	var tally ingestTally
	pipeline, err := db.NewPipeline(
		ingestion.WithConcurrency(concurrency),
		ingestion.WithResultHandler(tally.record),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	registry, err := db.NewRegistry(pipeline, cfg.BufferOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	sessionID := c.String("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := registry.Start(sessionID, c.String("client")); err != nil {
		return err
	}

	readErr := readChunks(input, func(chunk core.Chunk) error {
		return registry.AddChunk(ctx, sessionID, chunk)
	})

	// End even after a read error so buffered text is kept
	summary, err := registry.End(ctx, sessionID)
	pipeline.Wait()
	if err := errors.Join(readErr, err); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Session %s: %d turns, %s\n", summary.SessionID, summary.TotalTurns, &tally)
	return nil
}

func listCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	turns, err := db.Turns().ListByClient(c.Context, c.String("client"))
	if err != nil {
		return err
	}
	for _, turn := range turns {
		marker := " "
		if !turn.HasEmbedding() {
			marker = "!"
		}
		fmt.Fprintf(c.App.Writer, "%s %-6d %-18.6f %s#%d %s: %s\n",
			marker, turn.ID, turn.OrderIndex, turn.SessionID, turn.SequenceInSession, turn.Speaker, turn.Content)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Turns().SessionStats(c.Context, c.String("session"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Session:            %s\n", stats.SessionID)
	fmt.Fprintf(w, "Turns:              %d\n", stats.TotalTurns)
	fmt.Fprintf(w, "With embeddings:    %d\n", stats.WithEmbeddings)
	fmt.Fprintf(w, "Without embeddings: %d\n", stats.WithoutEmbeddings)
	fmt.Fprintf(w, "Duplicates:         %d\n", stats.DuplicateTurns)
	fmt.Fprintf(w, "Average length:     %.1f\n", stats.AverageContentSize)
	fmt.Fprintf(w, "Sequence:           %d-%d\n", stats.FirstSequence, stats.LastSequence)
	fmt.Fprintf(w, "Span:               %s - %s\n",
		stats.FirstTimestamp.Format(time.RFC3339), stats.LastTimestamp.Format(time.RFC3339))
	return nil
}

func backfillCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	config := cfg.BackfillConfig()
	if c.IsSet("batch-size") {
		config.BatchSize = c.Int("batch-size")
		config.ReportInterval = config.BatchSize
	}
	if c.IsSet("batch-delay") {
		config.BatchDelay = c.Duration("batch-delay")
	}
	config.Resume = c.Bool("resume")
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	backfiller, err := db.NewBackfiller(config, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create backfiller: %w", err)
	}

	if c.Bool("analyze") {
		estimate, err := backfiller.Analyze(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Turns missing embeddings: %d\n", estimate.Turns)
		fmt.Fprintf(c.App.Writer, "Characters:               %d\n", estimate.Characters)
		fmt.Fprintf(c.App.Writer, "Estimated tokens:         %d\n", estimate.Tokens)
		fmt.Fprintf(c.App.Writer, "Estimated cost:           $%.4f\n", estimate.CostUSD)
		return nil
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := backfiller.Run(c.Context); err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

func healthCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := db.NewEmbeddingClient()
	if err != nil {
		return err
	}
	if !client.HealthCheck(c.Context) {
		return fmt.Errorf("embedding provider at %s (%s) is unhealthy", cfg.Embedding.Host, cfg.Embedding.Model)
	}
	fmt.Fprintf(c.App.Writer, "ok: %s (%s)\n", cfg.Embedding.Host, cfg.Embedding.Model)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
