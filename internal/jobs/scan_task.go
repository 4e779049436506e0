package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reelhaven/mediaserver/internal/events"
	"github.com/reelhaven/mediaserver/internal/metrics"
	"github.com/reelhaven/mediaserver/internal/models"
	"github.com/reelhaven/mediaserver/internal/scanner"
	"github.com/reelhaven/mediaserver/internal/store"
)

type ScanPayload struct {
	LibraryID string             `json:"library_id"`
	Kind      models.LibraryKind `json:"kind"`
	JobID     string             `json:"job_id"`
}

// ScanHandler runs a library scan as an asynq task, transitioning the
// persisted job record through queued -> running -> completed|failed and
// publishing the corresponding bus events. Status writes retry up to 5
// times with ~120ms backoff; the store is the only thing clients poll, so
// a transient write failure here must not silently strand a job at
// "running" forever.
type ScanHandler struct {
	scanner *scanner.Scanner
	jobs    *store.JobRepository
	bus     *events.Bus
	log     zerolog.Logger
}

func NewScanHandler(s *scanner.Scanner, jobs *store.JobRepository, bus *events.Bus, log zerolog.Logger) *ScanHandler {
	return &ScanHandler{scanner: s, jobs: jobs, bus: bus, log: log.With().Str("component", "scan_task").Logger()}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	if err := h.jobs.UpdateStatusWithRetry(p.JobID, models.JobRunning, 0, nil); err != nil {
		h.log.Error().Err(err).Str("job_id", p.JobID).Msg("failed to set job status to running")
	}
	h.bus.Publish(events.JobUpdate(p.JobID, string(models.JobRunning), 0))

	start := time.Now()
	result, err := h.scanner.Scan(p.LibraryID, p.Kind, func(processed, total int, message string) {
		progress := 0.0
		if total > 0 {
			progress = float64(processed) / float64(total)
		}
		h.bus.Publish(events.ScanProgress(p.LibraryID, p.JobID, progress, message))
	})

	if err != nil {
		errMsg := err.Error()
		if updateErr := h.jobs.UpdateStatusWithRetry(p.JobID, models.JobFailed, 0, &errMsg); updateErr != nil {
			h.log.Error().Err(updateErr).Str("job_id", p.JobID).Msg("failed to set job status to failed")
		}
		h.bus.Publish(events.JobUpdate(p.JobID, string(models.JobFailed), 0))
		h.log.Error().Err(err).Str("job_id", p.JobID).Msg("scan failed")
		return err
	}

	metrics.ScanDurationSeconds.WithLabelValues(string(p.Kind)).Observe(time.Since(start).Seconds())

	if updateErr := h.jobs.UpdateStatusWithRetry(p.JobID, models.JobCompleted, 1, nil); updateErr != nil {
		h.log.Error().Err(updateErr).Str("job_id", p.JobID).Msg("failed to set job status to completed")
	}
	h.bus.Publish(events.ScanComplete(p.LibraryID, p.JobID, result.Added))
	h.bus.Publish(events.JobUpdate(p.JobID, string(models.JobCompleted), 1))
	h.log.Info().Str("job_id", p.JobID).Int("added", result.Added).Int("skipped", result.Skipped).Int("orphaned", result.Orphaned).Msg("scan completed")
	return nil
}
