package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollcall/internal/attendance"
	"rollcall/internal/metrics"
	"rollcall/internal/profile"
	"rollcall/internal/queue"
	"rollcall/internal/session"
)

// Job asks for one session of one owner to be pushed to the webhook.
type Job struct {
	OwnerID string          `json:"owner_id"`
	Session session.ID      `json:"session"`
	Profile profile.Profile `json:"profile"`
}

// Loader reads a snapshot for a filter. attendance.Service is one.
type Loader interface {
	Snapshot(ctx context.Context, f attendance.Filter) (*attendance.Snapshot, error)
}

// Worker turns sync jobs into webhook deliveries.
type Worker struct {
	loader  Loader
	client  *Client
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewWorker builds a worker.
func NewWorker(loader Loader, client *Client, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{loader: loader, client: client, metrics: m, log: log}
}

// Enqueue validates job and publishes it for a worker to pick up.
func Enqueue(ctx context.Context, q queue.Queue, job Job) error {
	if job.OwnerID == "" {
		return fmt.Errorf("%w: federated view cannot sync", attendance.ErrPermissionDenied)
	}
	if _, _, err := session.Parse(job.Session); err != nil {
		return err
	}
	msg, err := queue.NewMessage(queue.TypeSheetSync, job)
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}

// Sync delivers one job immediately.
func (w *Worker) Sync(ctx context.Context, job Job) (Payload, error) {
	snap, err := w.loader.Snapshot(ctx, attendance.Filter{OwnerID: job.OwnerID, SessionID: job.Session})
	if err != nil {
		w.metrics.SyncDelivery("error")
		return Payload{}, err
	}
	p := Build(job.Profile, job.Session, snap.Roster(job.OwnerID), snap.Present(job.Session))
	if err := w.client.Send(ctx, job.Profile.SyncURL, p); err != nil {
		w.metrics.SyncDelivery("error")
		return p, err
	}
	w.metrics.SyncDelivery("ok")
	w.log.Info("sheet synced", "owner", job.OwnerID, "session", job.Session, "entries", len(p.Attendance))
	return p, nil
}

// Run consumes sync jobs until ctx ends. Failed deliveries are logged and
// dropped; the caller can enqueue again.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != queue.TypeSheetSync {
			continue
		}
		var job Job
		if err := msg.Decode(&job); err != nil {
			w.log.Warn("bad sync job", "error", err)
			continue
		}
		if _, err := w.Sync(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			w.log.Error("sheet sync failed", "owner", job.OwnerID, "session", job.Session, "error", err)
		}
	}
	return ctx.Err()
}
