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


package ingestion

import (
	"context"

	"github.com/kentyler/recall/core"
)

// processor is an internal interface for the stage that runs after a turn
// has its position.
type processor interface {
	// process enriches and persists a positioned turn, returning the stored copy.
	process(ctx context.Context, turn *core.Turn) (*core.Turn, error)
}
