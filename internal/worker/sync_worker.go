package worker

import (
	"context"
	"fmt"
	"log/slog"

	"carmatch/internal/amqp"
	"carmatch/internal/core"
	"carmatch/internal/records"
	"carmatch/internal/storage"
)

// Repository is the part of the SQLite store the mirror needs.
type Repository interface {
	GetSubmission(ctx context.Context, id int64) (core.SubmissionRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSubmission, error)
	SyncStatus(ctx context.Context, id int64) (string, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

var _ Repository = (*storage.SQLiteRepository)(nil)

// SyncWorker mirrors submissions from SQLite into the responses sheet.
type SyncWorker struct {
	storage   Repository
	sheets    records.Appender
	batchSize int
}

func NewSyncWorker(storage Repository, sheets records.Appender, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single submission sync message from AMQP.
// Redelivered messages for rows already mirrored are acknowledged without a
// second append.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SubmissionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	status, err := w.storage.SyncStatus(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("read sync status: %w", err)
	}
	if status == storage.SyncSynced {
		slog.InfoContext(ctx, "Submission already mirrored, skipping", "id", msg.ID)
		return nil
	}

	sub, err := w.storage.GetSubmission(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get submission from storage: %w", err)
	}
	if err := w.syncToSheets(ctx, msg.ID, sub); err != nil {
		return fmt.Errorf("sync submission to sheets: %w", err)
	}
	return nil
}

// ProcessPending mirrors one batch of pending submissions. It backs up the
// message path in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	synced, failed, err := w.sweep(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if synced+failed > 0 {
		slog.InfoContext(ctx, "Processed pending submissions", "synced", synced, "errors", failed)
	}
	return nil
}

// StartupSyncCheck sweeps a larger batch once when the worker starts, to
// recover from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending submissions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) sweep(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending submissions: %w", err)
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		sub, err := w.storage.GetSubmission(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get submission", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.syncToSheets(ctx, p.ID, sub); err != nil {
			slog.ErrorContext(ctx, "Failed to sync submission", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncToSheets(ctx context.Context, id int64, sub core.SubmissionRecord) error {
	ref, err := w.sheets.Append(ctx, sub)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is in the sheet even if the status update fails.
	if err := w.storage.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored submission",
		"id", id,
		"sheets_ref", ref,
		"motor_type", sub.MotorType)
	return nil
}
