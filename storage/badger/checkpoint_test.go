package badger

import (
	"context"
	"testing"
	"time"

	"github.com/kentyler/recall/core"
)

func TestCheckpointLifecycle(t *testing.T) {
	turnRepo, checkpointRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() {
		turnRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Missing checkpoints are not an error
	loaded, err := checkpointRepo.LoadCheckpoint(ctx, "embedding-backfill")
	if err != nil {
		t.Fatalf("Failed to load missing checkpoint: %v", err)
	}
	if loaded != nil {
		t.Fatalf("Expected nil checkpoint, got %+v", loaded)
	}

	checkpoint := &core.Checkpoint{
		Name:      "embedding-backfill",
		LastID:    42,
		Processed: 17,
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := checkpointRepo.SaveCheckpoint(ctx, checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	loaded, err = checkpointRepo.LoadCheckpoint(ctx, "embedding-backfill")
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected checkpoint, got nil")
	}
	if loaded.LastID != 42 || loaded.Processed != 17 {
		t.Fatalf("Unexpected checkpoint contents: %+v", loaded)
	}

	// Other names are independent
	other, err := checkpointRepo.LoadCheckpoint(ctx, "other-job")
	if err != nil {
		t.Fatalf("Failed to load other checkpoint: %v", err)
	}
	if other != nil {
		t.Fatalf("Expected no checkpoint for other job, got %+v", other)
	}

	if err := checkpointRepo.DeleteCheckpoint(ctx, "embedding-backfill"); err != nil {
		t.Fatalf("Failed to delete checkpoint: %v", err)
	}
	loaded, err = checkpointRepo.LoadCheckpoint(ctx, "embedding-backfill")
	if err != nil {
		t.Fatalf("Failed to load deleted checkpoint: %v", err)
	}
	if loaded != nil {
		t.Fatalf("Expected deleted checkpoint to be gone, got %+v", loaded)
	}
}
