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

import (
	"fmt"
	"math"
	"strings"
)

// NormalizeSpeaker trims a speaker name and substitutes UnknownSpeaker for blanks.
func NormalizeSpeaker(speaker string) string {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return UnknownSpeaker
	}
	return speaker
}

// ValidateDraft validates a Draft according to domain rules.
//
// Validation rules:
//   - Content must not be blank
//   - ClientID must not be empty and must not contain NUL (it is part of index keys)
//   - an explicit OrderIndex in the placement must be valid
//
// NOT validated:
//   - SessionID (drafts from outside a buffer may have none)
//   - SequenceInSession (0 is valid for drafts not produced by a buffer)
func ValidateDraft(d *Draft) error {
	if d == nil {
		return fmt.Errorf("%w: draft is nil", ErrInvalidDraft)
	}

	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, ErrEmptyContent)
	}

	if err := ValidateClientID(d.ClientID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}

	if d.Placement.OrderIndex != nil {
		if err := ValidateOrderIndex(*d.Placement.OrderIndex); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDraft, err)
		}
	}

	return nil
}

// ValidateClientID checks that a client id can be used as a key component.
func ValidateClientID(clientID string) error {
	if clientID == "" {
		return ErrEmptyClientID
	}
	if strings.IndexByte(clientID, 0) >= 0 {
		return ErrInvalidClientID
	}
	return nil
}

// ValidateOrderIndex checks that an explicit order index is finite and non-negative.
func ValidateOrderIndex(index float64) error {
	if math.IsNaN(index) || math.IsInf(index, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidIndex, index)
	}
	if index < 0 {
		return fmt.Errorf("%w: %v is negative", ErrInvalidIndex, index)
	}
	return nil
}

// ValidateTurn validates a Turn before it is persisted.
//
// Validation rules:
//   - the draft fields must be valid
//   - exactly one of Embedding and EmbeddingError is set
//   - OrderIndex must be valid
//
// NOT validated:
//   - ID (0 is replaced by a database sequence on save)
func ValidateTurn(t *Turn) error {
	if t == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if err := ValidateDraft(&t.Draft); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}

	if t.HasEmbedding() == (t.EmbeddingError != "") {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmbeddingState)
	}

	if err := ValidateOrderIndex(t.OrderIndex); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}

	return nil
}
