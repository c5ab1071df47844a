package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
	"github.com/dharsanguruparan/CrimeVault/internal/queue"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	repo   *repository.CrimeRepository
	photos *photostore.Storage
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo *repository.CrimeRepository, photos *photostore.Storage) *Processor {
	return &Processor{repo: repo, photos: photos}
}

// Handler registers the archive job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ArchivePhotoTask, p.handleArchive)
	return mux
}

func (p *Processor) handleArchive(ctx context.Context, task *asynq.Task) error {
	var payload queue.ArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if _, err := os.Stat(payload.PhotoPath); err != nil {
		// A missing source file will never succeed on retry.
		log.Printf("archive skipped for %s: %v", payload.RecordID, err)
		return nil
	}
	objectKey := photostore.ObjectKeyFor(payload.RecordID, payload.PhotoPath)
	ref, err := p.photos.Archive(ctx, objectKey, payload.PhotoPath)
	if err != nil {
		log.Printf("archive failed for %s: %v", payload.RecordID, err)
		return err
	}
	// The record's photo reference now points into object storage. Running
	// front-ends keep their cached copy until the next reload; GetByID is
	// authoritative either way.
	modified, err := p.repo.UpdatePhotoPath(ctx, payload.RecordID, ref)
	if err != nil {
		return fmt.Errorf("update photo reference: %w", err)
	}
	if modified == 0 {
		log.Printf("record %s deleted before its photo was archived", payload.RecordID)
		return nil
	}
	log.Printf("photo for %s archived to %s", payload.RecordID, ref)
	return nil
}
