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


package core

import "errors"

// Pipeline errors
var (
	// ErrInvalidState indicates an operation was called in the wrong lifecycle state,
	// such as adding a chunk before a session was started.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidIndex indicates an explicit order index is negative or not finite.
	ErrInvalidIndex = errors.New("invalid order index")

	// ErrReferenceNotFound indicates an insertion bound names a turn that does not exist.
	ErrReferenceNotFound = errors.New("reference turn not found")

	// ErrEmbeddingProvider indicates the embedding provider failed after all retries.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrStorage indicates the turn store failed.
	ErrStorage = errors.New("storage failure")
)

// Domain validation errors
var (
	// ErrInvalidDraft indicates a Draft failed validation.
	ErrInvalidDraft = errors.New("invalid draft")

	// ErrInvalidTurn indicates a Turn failed validation.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyClientID indicates a draft has no client.
	ErrEmptyClientID = errors.New("client id cannot be empty")

	// ErrInvalidClientID indicates a client id contains a NUL byte.
	ErrInvalidClientID = errors.New("client id cannot contain NUL")

	// ErrEmbeddingState indicates a turn has both or neither of Embedding and EmbeddingError.
	ErrEmbeddingState = errors.New("exactly one of embedding and embedding error must be set")
)
