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


// Package ai provides the embedding abstractions used by recall.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - EmbeddingClient: An embedder with retry, dimension checks and a dedupe cache
//   - AIProvider: Aggregates AI services for convenient initialization
//
// Client is the EmbeddingClient implementation. It retries failed calls with
// exponential backoff (3 attempts, 1s doubling, capped at 10s by default) and
// wraps the final failure in core.ErrEmbeddingProvider so callers can persist
// a turn without a vector instead of losing it.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIToken(token))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	client, err := ai.NewClient(provider.Embedder(), config)
//	vector, err := client.EmbedWithRetry(ctx, "Hello world")
package ai
