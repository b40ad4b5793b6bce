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


// Package recall turns live meeting transcripts into ordered, embedded turns.
//
// A Database wires the pieces together: chunks go into a buffer.Registry,
// flushed drafts flow into an ingestion.Pipeline, and turns land in badger.
//
//	db, err := recall.NewDatabase("recall.db")
//	pipeline, err := db.NewPipeline()
//	registry, err := db.NewRegistry(pipeline)
//	registry.Start(sessionID, clientID)
//	registry.AddChunk(ctx, sessionID, core.Chunk{Speaker: "Ken", Text: "hello"})
//	registry.End(ctx, sessionID)
//	pipeline.Wait()
package recall

import (
	"io"
	"log/slog"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/ai/openai"
	"github.com/kentyler/recall/backfill"
	"github.com/kentyler/recall/buffer"
	"github.com/kentyler/recall/ingestion"
	"github.com/kentyler/recall/ordering"
	"github.com/kentyler/recall/storage"
	"github.com/kentyler/recall/storage/badger"
)

type Database struct {
	backend        *badger.Backend
	turnRepo       *badger.TurnRepository
	checkpointRepo *badger.CheckpointRepository
	indexer        *ordering.Indexer
	provider       ai.AIProvider
	aiConfig       *ai.Config
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of an OpenAI-compatible one.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// InMemory keeps all data in memory; the path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create turn repository
	turnRepo, err := badger.NewTurnRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create checkpoint repository
	checkpointRepo := badger.NewCheckpointRepository(backend)

	// One indexer per database so append positions are never shared
	indexer, err := ordering.NewIndexer(turnRepo)
	if err != nil {
		turnRepo.Close()
		backend.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			turnRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:        backend,
		turnRepo:       turnRepo,
		checkpointRepo: checkpointRepo,
		indexer:        indexer,
		provider:       provider,
		aiConfig:       options.aiConfig,
		logger:         slog.Default(),
	}, nil
}

// OpenDatabase opens the database described by cfg.
func OpenDatabase(cfg *Config, opts ...DatabaseOption) (*Database, error) {
	opts = append([]DatabaseOption{WithAIConfig(cfg.AIConfig())}, opts...)
	return NewDatabase(cfg.Storage.Path, opts...)
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := db.turnRepo.Close(); err != nil {
		db.logger.Error("error closing turn repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Turns() storage.TurnRepository {
	return db.turnRepo
}

func (db *Database) Checkpoints() storage.CheckpointRepository {
	return db.checkpointRepo
}

// Indexer returns the database's order indexer.
func (db *Database) Indexer() *ordering.Indexer {
	return db.indexer
}

// NewEmbeddingClient wraps the provider's embedder with the configured
// retry policy, dimension check and cache.
func (db *Database) NewEmbeddingClient(opts ...ai.ClientOption) (*ai.Client, error) {
	return ai.NewClient(db.provider.Embedder(), db.aiConfig, opts...)
}

func (db *Database) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	client, err := db.NewEmbeddingClient()
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(db.turnRepo, db.indexer, client, opts...)
}

// NewRegistry creates a session registry whose buffers flush into sink,
// usually a pipeline from NewPipeline.
func (db *Database) NewRegistry(sink buffer.TurnSink, opts ...buffer.RegistryOption) (*buffer.Registry, error) {
	return buffer.NewRegistry(sink, opts...)
}

// NewBackfiller creates an embedding backfill over the stored turns.
// A nil config uses backfill.DefaultConfig with the provider's dimensions.
func (db *Database) NewBackfiller(config *backfill.Config, progress io.Writer) (*backfill.Backfiller, error) {
	if config == nil {
		config = backfill.DefaultConfig()
		config.Dimensions = db.aiConfig.Dimensions
	}
	return backfill.NewBackfiller(db.turnRepo, db.checkpointRepo, db.provider.Embedder(), config, progress)
}
