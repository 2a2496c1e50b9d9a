package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/framedrop/framedrop/internal/common"
	"github.com/framedrop/framedrop/internal/finalize"
	"github.com/framedrop/framedrop/internal/metrics"
	"github.com/framedrop/framedrop/internal/notify"
	"github.com/framedrop/framedrop/internal/session"
	"github.com/framedrop/framedrop/pkg/types"
)

// Notifier is the notification channel surface the engine dispatches to
type Notifier interface {
	Publish(ctx context.Context, snap session.UploadSession) error
	PublishTerminal(ctx context.Context, snap session.UploadSession, text string) error
	Cleanup(ctx context.Context, uploadID string) error
}

// Finalizer runs the post-transfer pipeline and resolves access tokens
type Finalizer interface {
	Run(ctx context.Context, snap session.UploadSession) (*finalize.Result, error)
	ResolveToken(ctx context.Context, token string) (*types.UploadLink, error)
}

// Engine applies lifecycle events to the session store and drives the
// notification channel. Events for the same upload id are serialized through
// a keyed mutex; different ids never contend. Notification dispatch goes
// through a queue consumed by a worker so remote-API latency and failures
// stay out of the event handlers.
type Engine struct {
	sessions *session.Store
	notifier Notifier
	pipeline Finalizer
	locks    *common.KeyedMutex
	metrics  *metrics.Metrics

	sidecarDir string
	jobs       chan notifyJob
}

type notifyJob struct {
	terminal bool
	snap     session.UploadSession
	text     string
}

// NewEngine creates an event ingestion engine
func NewEngine(sessions *session.Store, notifier Notifier, pipeline Finalizer, m *metrics.Metrics, sidecarDir string, queueSize int) *Engine {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Engine{
		sessions:   sessions,
		notifier:   notifier,
		pipeline:   pipeline,
		locks:      common.NewKeyedMutex(),
		metrics:    m,
		sidecarDir: sidecarDir,
		jobs:       make(chan notifyJob, queueSize),
	}
}

// Start runs the notification dispatch worker until ctx is cancelled
func (e *Engine) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-e.jobs:
				e.dispatch(job)
			}
		}
	}()
}

// HandleCreated registers a new upload session. The token is resolved
// synchronously; an unresolvable token is surfaced to the caller and no
// session or notification is produced.
func (e *Engine) HandleCreated(ctx context.Context, ev types.HookEvent) error {
	e.locks.Lock(ev.UploadID)
	defer e.locks.Unlock(ev.UploadID)

	link, err := e.pipeline.ResolveToken(ctx, ev.Metadata["token"])
	if err != nil {
		e.count(types.EventCreated, "rejected")
		log.Warn().Err(err).Str("upload_id", ev.UploadID).Msg("upload creation rejected")
		return err
	}

	now := time.Now()
	metadata := map[string]string{
		"filename":    ev.Metadata["filename"],
		"token":       ev.Metadata["token"],
		"filetype":    ev.Metadata["filetype"],
		"clientName":  link.Project.Client.Name,
		"projectName": link.Project.Name,
	}

	sess := &session.UploadSession{
		ID:          ev.UploadID,
		Size:        ev.Size,
		Metadata:    metadata,
		CreatedAt:   now,
		LastUpdated: now,
	}
	e.sessions.Put(sess)
	snap, _ := e.sessions.Get(ev.UploadID)

	e.count(types.EventCreated, "ok")
	e.enqueue(notifyJob{snap: snap})
	return nil
}

// HandleReceiving records transfer progress. Unknown sessions are
// reconstructed best-effort from the payload; terminated and completed
// sessions are frozen against further advancement, and a decreasing offset is
// discarded as a protocol anomaly.
func (e *Engine) HandleReceiving(ctx context.Context, ev types.HookEvent) error {
	e.locks.Lock(ev.UploadID)
	defer e.locks.Unlock(ev.UploadID)

	now := time.Now()

	snap, ok := e.sessions.Get(ev.UploadID)
	if !ok {
		// Session evicted or never observed (process restart); rebuild what
		// the payload gives us without fabricating an earlier offset
		log.Warn().Str("upload_id", ev.UploadID).Msg("progress for unknown session, reconstructing")
		e.sessions.Put(e.reconstruct(ev, now))
		snap, _ = e.sessions.Get(ev.UploadID)
		e.count(types.EventReceiving, "reconstructed")
		e.enqueue(notifyJob{snap: snap})
		return nil
	}

	if snap.Terminated || snap.IsComplete {
		e.count(types.EventReceiving, "frozen")
		return nil
	}
	if ev.Offset < snap.Offset {
		e.count(types.EventReceiving, "anomaly")
		log.Warn().
			Str("upload_id", ev.UploadID).
			Int64("offset", ev.Offset).
			Int64("current", snap.Offset).
			Msg("decreasing offset discarded")
		return nil
	}

	updated, ok := e.sessions.Update(ev.UploadID, func(s *session.UploadSession) {
		prev := session.Sample{Offset: s.PreviousOffset, Time: s.PreviousUpdateTime}
		cur := session.Sample{Offset: ev.Offset, Time: now}
		s.UploadSpeed, s.SpeedKnown = session.EstimateSpeed(prev, cur, s.UploadSpeed, s.SpeedKnown)

		// Advance the sample window only when enough time has passed for the
		// next estimate to be meaningful
		if prev.Time.IsZero() || now.Sub(prev.Time) >= session.MinSampleInterval {
			s.PreviousOffset = ev.Offset
			s.PreviousUpdateTime = now
		}

		s.Offset = ev.Offset
		if ev.Size > 0 {
			s.Size = ev.Size
		}
		s.LastUpdated = now
	})
	if !ok {
		// Evicted by the reaper mid-handler; publish from the last snapshot
		snap.Offset = ev.Offset
		snap.LastUpdated = now
		updated = snap
	}

	e.count(types.EventReceiving, "ok")
	e.enqueue(notifyJob{snap: updated})
	return nil
}

// HandleFinished triggers the finalization pipeline. Duplicate deliveries are
// no-op successes; the pipeline's record check is the idempotence anchor, so
// this holds across process restarts too.
func (e *Engine) HandleFinished(ctx context.Context, ev types.HookEvent) error {
	e.locks.Lock(ev.UploadID)
	defer e.locks.Unlock(ev.UploadID)

	snap, ok := e.sessions.Get(ev.UploadID)
	if !ok {
		e.sessions.Put(e.reconstruct(ev, time.Now()))
		snap, _ = e.sessions.Get(ev.UploadID)
	} else if snap.Meta("token") == "" || snap.Meta("filename") == "" {
		// Incomplete session metadata; the sidecar descriptor is the
		// fallback source
		if info, err := readSidecar(e.sidecarDir, ev.UploadID); err == nil {
			merged, ok := e.sessions.Update(ev.UploadID, func(s *session.UploadSession) {
				mergeSidecar(s, info)
			})
			if !ok {
				mergeSidecar(&snap, info)
				merged = snap
			}
			snap = merged
		}
	}

	if snap.IsComplete {
		e.count(types.EventFinished, "duplicate")
		return nil
	}

	res, err := e.pipeline.Run(ctx, snap)
	if err != nil {
		e.count(types.EventFinished, "error")
		failed, ok := e.sessions.Update(ev.UploadID, func(s *session.UploadSession) {
			s.LastUpdated = time.Now()
		})
		if !ok {
			failed = snap
		}
		e.enqueue(notifyJob{terminal: true, snap: failed, text: notify.FormatFailed(failed, err.Error())})
		return err
	}

	completed, ok := e.sessions.Update(ev.UploadID, func(s *session.UploadSession) {
		s.IsComplete = true
		if s.Size > 0 {
			s.Offset = s.Size
		}
		s.LastUpdated = time.Now()
	})
	if !ok {
		snap.IsComplete = true
		if snap.Size > 0 {
			snap.Offset = snap.Size
		}
		snap.LastUpdated = time.Now()
		completed = snap
	}

	e.count(types.EventFinished, "ok")
	if !res.AlreadyCompleted {
		e.enqueue(notifyJob{terminal: true, snap: completed, text: notify.FormatCompleted(completed)})
	}
	return nil
}

// HandleTerminated marks the session terminated, suppressing all further
// progress events. Termination after finish is a no-op; it never deletes a
// session a concurrent finished handler may be reading.
func (e *Engine) HandleTerminated(ctx context.Context, ev types.HookEvent) error {
	e.locks.Lock(ev.UploadID)
	defer e.locks.Unlock(ev.UploadID)

	snap, ok := e.sessions.Get(ev.UploadID)
	if !ok {
		// Nothing in flight; drop any handle left over from a previous run
		if err := e.notifier.Cleanup(ctx, ev.UploadID); err != nil {
			log.Warn().Err(err).Str("upload_id", ev.UploadID).Msg("handle cleanup for unknown session failed")
		}
		e.count(types.EventTerminated, "unknown")
		return nil
	}

	if snap.IsComplete || snap.Terminated {
		e.count(types.EventTerminated, "duplicate")
		return nil
	}

	terminated, ok := e.sessions.Update(ev.UploadID, func(s *session.UploadSession) {
		s.Terminated = true
		s.LastUpdated = time.Now()
	})
	if !ok {
		snap.Terminated = true
		snap.LastUpdated = time.Now()
		terminated = snap
	}

	e.count(types.EventTerminated, "ok")
	e.enqueue(notifyJob{terminal: true, snap: terminated, text: notify.FormatTerminated(terminated)})
	return nil
}

// Progress returns a snapshot of the session for display
func (e *Engine) Progress(uploadID string) (session.UploadSession, bool) {
	return e.sessions.Get(uploadID)
}

func (e *Engine) reconstruct(ev types.HookEvent, now time.Time) *session.UploadSession {
	sess := &session.UploadSession{
		ID:          ev.UploadID,
		Size:        ev.Size,
		Offset:      ev.Offset,
		Metadata:    map[string]string{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	for k, v := range ev.Metadata {
		sess.Metadata[k] = v
	}
	if sess.Meta("filename") == "" || sess.Meta("token") == "" {
		if info, err := readSidecar(e.sidecarDir, ev.UploadID); err == nil {
			mergeSidecar(sess, info)
		}
	}
	if sess.Meta("filename") == "" {
		sess.Metadata["filename"] = "unknown"
	}
	return sess
}

func mergeSidecar(s *session.UploadSession, info *sidecarInfo) {
	if s.Metadata == nil {
		s.Metadata = map[string]string{}
	}
	for k, v := range info.MetaData {
		if s.Metadata[k] == "" {
			s.Metadata[k] = v
		}
	}
	if s.Size == 0 && info.Size > 0 {
		s.Size = info.Size
	}
	if info.Offset > s.Offset {
		s.Offset = info.Offset
	}
}

func (e *Engine) enqueue(job notifyJob) {
	select {
	case e.jobs <- job:
	default:
		log.Warn().Str("upload_id", job.snap.ID).Msg("notification queue full, dropping update")
	}
}

func (e *Engine) dispatch(job notifyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	if job.terminal {
		err = e.notifier.PublishTerminal(ctx, job.snap, job.text)
	} else {
		err = e.notifier.Publish(ctx, job.snap)
	}
	if err != nil {
		// Notification failures never abort the upload lifecycle
		log.Warn().Err(err).Str("upload_id", job.snap.ID).Msg("notification dispatch failed")
	}
}

func (e *Engine) count(eventType, status string) {
	if e.metrics != nil {
		e.metrics.EventsTotal.WithLabelValues(eventType, status).Inc()
	}
}
