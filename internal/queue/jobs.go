package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
)

const (
	// ArchivePhotoTask is scheduled when a report is filed with a photo.
	ArchivePhotoTask = "photo:archive"
)

// ArchivePayload tells the worker which file to move into object storage.
type ArchivePayload struct {
	RecordID  string `json:"record_id"`
	PhotoPath string `json:"photo_path"`
}

// EnqueueArchiveForRecord schedules archival when the record carries a local
// photo path. Records without a photo, or whose photo already points into
// object storage, are skipped without touching the client.
func EnqueueArchiveForRecord(ctx context.Context, client *asynq.Client, rec *model.Record) error {
	if rec.PhotoPath == model.DefaultPhotoPath || photostore.IsArchivedRef(rec.PhotoPath) {
		return nil
	}
	return EnqueueArchive(ctx, client, ArchivePayload{RecordID: rec.ID, PhotoPath: rec.PhotoPath})
}

// EnqueueArchive enqueues a photo archival job.
func EnqueueArchive(ctx context.Context, client *asynq.Client, payload ArchivePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ArchivePhotoTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue archive task: %w", err)
	}
	return nil
}
