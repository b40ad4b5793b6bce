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


// Package storage defines the persistence contracts for turns and job
// checkpoints.
//
// TurnStore is the write side the ingestion pipeline depends on. Each Save
// appends a new record with a fresh ID; no deduplication happens here.
// TurnRepository adds the reads needed to place turns in order, to page
// through turns still missing an embedding and to summarize sessions.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	turns, err := badger.NewTurnRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer turns.Close()
//
// Tests use in-memory storage:
//
//	turns, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Errors
//
// A missing record is reported as ErrNotFound. Backend failures wrap
// core.ErrStorage, and use on a closed database also wraps ErrStorageClosed.
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use.
package storage
