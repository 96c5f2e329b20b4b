// Package session accumulates streaming audio chunks per session, flushes
// them to WAV containers on a fixed interval, and hands the containers to a
// transcription backend. Idle sessions are swept by a background goroutine.
package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/omihq/omi-gateway/internal/audio"
	"github.com/omihq/omi-gateway/internal/config"
	"github.com/omihq/omi-gateway/internal/observability"
	"github.com/omihq/omi-gateway/internal/transcribe"
)

// Session holds the accumulation state for one caller-supplied identifier.
// The state mutex guards the pending buffer and activity bookkeeping; the
// flush mutex serializes flushes so two timer fires can never interleave.
type Session struct {
	ID         string
	CreatedAt  time.Time
	SampleRate int

	mu           sync.Mutex
	lastActivity time.Time
	pending      [][]byte
	pendingBytes int
	chunkCount   int
	transcripts  []string

	flushMu sync.Mutex
	cancel  context.CancelFunc
}

// SessionInfo is a read-only snapshot for the sessions endpoint
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	SampleRate   int       `json:"sampleRate"`
	ChunkCount   int       `json:"chunkCount"`
	PendingBytes int       `json:"pendingBytes"`
	Transcripts  []string  `json:"transcripts"`
}

// Accumulator owns the session registry and the per-session flush timers
type Accumulator struct {
	flushInterval time.Duration
	idleLimit     time.Duration
	sweepInterval time.Duration

	transcriber   transcribe.Backend
	sink          Sink
	transcriptLog TranscriptLog

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an accumulator and starts its idle-sweep goroutine
func New(cfg *config.Config, transcriber transcribe.Backend, sink Sink, transcriptLog TranscriptLog) *Accumulator {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Accumulator{
		flushInterval: cfg.FlushIntervalDuration(),
		idleLimit:     cfg.SessionIdleDuration(),
		sweepInterval: cfg.SweepIntervalDuration(),
		transcriber:   transcriber,
		sink:          sink,
		transcriptLog: transcriptLog,
		sessions:      make(map[string]*Session),
		ctx:           ctx,
		cancel:        cancel,
	}

	a.wg.Add(1)
	go a.sweepLoop()

	return a
}

// ReceiveChunk appends a chunk to the session's pending buffer, creating the
// session on first contact. An empty chunk is a keepalive: it refreshes
// lastActivity but buffers nothing. Returns the session's total chunk count.
func (a *Accumulator) ReceiveChunk(sessionID string, chunk []byte, sampleRate int) int {
	s := a.getOrCreate(sessionID, sampleRate)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()

	if len(chunk) > 0 {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		s.pending = append(s.pending, buf)
		s.pendingBytes += len(buf)
		s.chunkCount++
		observability.RecordChunk(len(buf))
	}

	return s.chunkCount
}

// EndSession flushes any pending audio and removes the session. Used when a
// device signals disconnect instead of waiting out the idle window. Returns
// false if the session does not exist.
func (a *Accumulator) EndSession(sessionID string) bool {
	a.mu.Lock()
	s, ok := a.sessions[sessionID]
	if ok {
		delete(a.sessions, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return false
	}

	s.cancel()
	a.flush(s)
	observability.RecordSessionRemoved(false)

	log := observability.GetLogger()
	log.Info().
		Str("session_id", sessionID).
		Msg("Session ended")

	return true
}

// SweepIdle removes every session idle longer than the threshold, canceling
// its flush timer. Safe to call repeatedly; a second sweep with no new
// activity finds nothing to remove.
func (a *Accumulator) SweepIdle(now time.Time) int {
	a.mu.Lock()

	var expired []*Session
	for id, s := range a.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActivity) > a.idleLimit
		s.mu.Unlock()

		if idle {
			delete(a.sessions, id)
			expired = append(expired, s)
		}
	}
	a.mu.Unlock()

	log := observability.GetLogger()
	for _, s := range expired {
		s.cancel()
		observability.RecordSessionRemoved(true)
		log.Info().
			Str("session_id", s.ID).
			Msg("Idle session swept")
	}

	return len(expired)
}

// Transcripts returns the accumulated transcripts for a session
func (a *Accumulator) Transcripts(sessionID string) ([]string, bool) {
	a.mu.RLock()
	s, ok := a.sessions[sessionID]
	a.mu.RUnlock()

	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.transcripts))
	copy(out, s.transcripts)
	return out, true
}

// Snapshot returns read-only state for all live sessions
func (a *Accumulator) Snapshot() []SessionInfo {
	a.mu.RLock()
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		transcripts := make([]string, len(s.transcripts))
		copy(transcripts, s.transcripts)
		infos = append(infos, SessionInfo{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.lastActivity,
			SampleRate:   s.SampleRate,
			ChunkCount:   s.chunkCount,
			PendingBytes: s.pendingBytes,
			Transcripts:  transcripts,
		})
		s.mu.Unlock()
	}

	return infos
}

// Count returns the number of live sessions
func (a *Accumulator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// Stop cancels all timers and the sweeper, then flushes remaining audio so a
// graceful shutdown does not drop the tail of any session.
func (a *Accumulator) Stop() {
	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	remaining := make([]*Session, 0, len(a.sessions))
	for id, s := range a.sessions {
		delete(a.sessions, id)
		remaining = append(remaining, s)
	}
	a.mu.Unlock()

	for _, s := range remaining {
		s.cancel()
		a.flush(s)
		observability.RecordSessionRemoved(false)
	}
}

func (a *Accumulator) getOrCreate(sessionID string, sampleRate int) *Session {
	a.mu.RLock()
	s, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Another caller may have created it between the two locks
	if s, ok := a.sessions[sessionID]; ok {
		return s
	}

	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	ctx, cancel := context.WithCancel(a.ctx)
	now := time.Now()

	s = &Session{
		ID:           sessionID,
		CreatedAt:    now,
		SampleRate:   sampleRate,
		lastActivity: now,
		cancel:       cancel,
	}
	a.sessions[sessionID] = s

	a.wg.Add(1)
	go a.flushLoop(ctx, s)

	observability.RecordSessionCreated()
	log := observability.GetLogger()
	log.Info().
		Str("session_id", sessionID).
		Int("sample_rate", sampleRate).
		Msg("Audio session created")

	return s
}

// flushLoop drives the periodic flush for one session until its context is
// canceled by sweep, end-of-session, or accumulator shutdown
func (a *Accumulator) flushLoop(ctx context.Context, s *Session) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flush(s)
		}
	}
}

// flush drains the pending buffer, frames it as WAV, stores the container,
// and transcribes it. The buffer swap happens under the session's state lock;
// the slow work runs on the detached chunks so chunk ingestion never blocks.
// Transcription failures are logged and the interval's audio is dropped;
// retrying would splice stale audio in front of newer chunks.
func (a *Accumulator) flush(s *Session) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		observability.RecordFlush("empty")
		return
	}
	drained := s.pending
	drainedBytes := s.pendingBytes
	s.pending = nil
	s.pendingBytes = 0
	s.mu.Unlock()

	log := observability.GetLogger().With().
		Str("session_id", s.ID).
		Int("chunks", len(drained)).
		Int("bytes", drainedBytes).
		Logger()

	pcm := bytes.Join(drained, nil)

	wav, err := audio.EncodeWAV(pcm, s.SampleRate)
	if err != nil {
		// Unreachable past the empty-pending guard
		log.Error().Err(err).Msg("Failed to encode audio container")
		observability.RecordFlush("error")
		return
	}

	fileName := ""
	if a.sink != nil {
		fileName, err = a.sink.Store(s.ID, wav)
		if err != nil {
			log.Error().Err(err).Msg("Failed to store audio container")
			observability.RecordFlush("error")
			return
		}
	}

	transcript, err := a.transcriber.Transcribe(context.Background(), wav)
	if err != nil {
		log.Error().Err(err).Msg("Transcription failed, dropping interval audio")
		observability.RecordFlush("error")
		return
	}

	// An empty transcript means nothing was said in this interval; nothing
	// to record, the flush still succeeded
	if transcript != "" {
		s.mu.Lock()
		s.transcripts = append(s.transcripts, transcript)
		s.mu.Unlock()

		if a.transcriptLog != nil {
			entry := TranscriptEntry{
				SessionID:  s.ID,
				Transcript: transcript,
				AudioFile:  fileName,
				Timestamp:  time.Now(),
			}
			if err := a.transcriptLog.Append(entry); err != nil {
				log.Error().Err(err).Msg("Failed to append transcript log entry")
			}
		}
	}

	observability.RecordFlush("success")
	log.Info().Str("file", fileName).Msg("Flush complete")
}

// sweepLoop periodically removes idle sessions
func (a *Accumulator) sweepLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if n := a.SweepIdle(time.Now()); n > 0 {
				log := observability.GetLogger()
				log.Debug().Int("removed", n).Msg("Idle sweep complete")
			}
		}
	}
}
