package syncer

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/record"
)

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	// RecordsUploaded is the number of records pushed to the remote store.
	RecordsUploaded int

	// CollectionsFailed lists collections whose pass was aborted by an
	// error. The remaining collections were still processed.
	CollectionsFailed []record.Collection

	// Errors holds the per-collection failures, parallel to
	// CollectionsFailed.
	Errors []error

	StartTime time.Time
	Duration  time.Duration
}

// SyncToCloud walks every collection and uploads each local record that does
// not yet carry a cloudId, then rewrites the local copy with the assigned
// id. Presence of cloudId is the sole completion marker, which makes the
// pass idempotent when uninterrupted: a second run uploads nothing.
//
// The guarantee is deliberately not transactional. If the process dies
// between the remote upload and the local rewrite, the next pass uploads
// that record again and the remote side ends up with a duplicate. The
// window is observable through UnconfirmedUploads rather than papered over;
// closing it would need an idempotency key tying a local record to at most
// one remote document.
//
// One collection failing does not abort the others: the error is recorded
// and the loop continues. SyncToCloud itself only errors when cloud mode is
// not active.
func (a *Adapter) SyncToCloud(ctx context.Context) (*SyncResult, error) {
	if !a.IsCloudEnabled() {
		return nil, syncErrors.E(opSync, component, syncErrors.KindValidation,
			"cloud sync is not enabled")
	}

	result := &SyncResult{StartTime: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartTime)
		a.metrics.RecordSyncDuration("sync_to_cloud", result.Duration)
	}()

	for _, collection := range record.Collections {
		uploaded, err := a.syncCollection(ctx, collection)
		result.RecordsUploaded += uploaded
		if err != nil {
			wrapped := syncErrors.WrapOpComponent(err, opSync, component)
			result.CollectionsFailed = append(result.CollectionsFailed, collection)
			result.Errors = append(result.Errors, wrapped)
			a.setSyncError(collection, wrapped)
			a.metrics.RecordSyncErrors(string(collection), "collection_sync_failure")
			a.logger.LogError(ctx, wrapped, "collection sync failed, continuing",
				slog.String("collection", string(collection)),
			)
			continue
		}
	}

	a.metrics.RecordRecordsUploaded(result.RecordsUploaded)
	a.logger.InfoContext(ctx, "reconciliation pass complete",
		slog.Int("records_uploaded", result.RecordsUploaded),
		slog.Int("collections_failed", len(result.CollectionsFailed)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// syncCollection uploads the un-synced records of one collection.
func (a *Adapter) syncCollection(ctx context.Context, collection record.Collection) (int, error) {
	locals, err := a.local.GetAll(ctx, collection)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, rec := range locals {
		select {
		case <-ctx.Done():
			return uploaded, ctx.Err()
		default:
		}

		if rec.Synced() {
			continue
		}

		cloudID, err := a.remote.Add(ctx, collection, rec)
		if err != nil {
			return uploaded, err
		}
		uploaded++
		a.trackUnconfirmed(1)

		rec.CloudID = cloudID
		if _, err := a.local.Update(ctx, collection, rec); err != nil {
			// The remote document exists but the local record still lacks
			// its cloudId: the next pass will upload it again.
			a.logger.WarnContext(ctx, "cloudId rewrite failed, record will re-upload on next pass",
				slog.String("collection", string(collection)),
				slog.String("local_id", strconv.FormatInt(rec.ID, 10)),
				slog.String("cloud_id", cloudID),
			)
			continue
		}
		a.trackUnconfirmed(-1)
	}
	return uploaded, nil
}

// UnconfirmedUploads reports how many records were uploaded to the remote
// store without a confirmed local cloudId rewrite. Non-zero values mark the
// duplicate-upload window left open by the non-transactional dual write.
func (a *Adapter) UnconfirmedUploads() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.unconfirmed
}

func (a *Adapter) trackUnconfirmed(delta int) {
	a.mu.Lock()
	a.unconfirmed += delta
	count := a.unconfirmed
	a.mu.Unlock()
	a.metrics.SetUnconfirmedUploads(count)
}
