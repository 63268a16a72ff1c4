// Package logsink persists envelope history, capability decisions, and
// per-participant output to rotating JSON-lines files using
// natefinch/lumberjack.
package logsink

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mewprotocol/gateway/internal/envelope"
)

// Options configures rotation limits, shared across every file the sink
// opens.
type Options struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// Sink writes space-scoped JSON-lines logs to disk, one rotating file per
// (space, category) pair, opened lazily on first write.
type Sink struct {
	opts Options

	mu      sync.Mutex
	writers map[string]*lumberjack.Logger
}

// New constructs a Sink. No files are created until the first write.
func New(opts Options) *Sink {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	return &Sink{opts: opts, writers: make(map[string]*lumberjack.Logger)}
}

func (s *Sink) writerFor(relPath string) *lumberjack.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writers[relPath]
	if ok {
		return w
	}
	w = &lumberjack.Logger{
		Filename:   filepath.Join(s.opts.Dir, relPath),
		MaxSize:    s.opts.MaxSizeMB,
		MaxBackups: s.opts.MaxBackups,
		Compress:   true,
	}
	s.writers[relPath] = w
	return w
}

func (s *Sink) writeLine(relPath string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	w := s.writerFor(relPath)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = w.Write(append(b, '\n'))
}

// AppendEnvelope writes e to <space>/envelope-history.jsonl.
func (s *Sink) AppendEnvelope(spaceID string, e *envelope.Envelope) {
	s.writeLine(filepath.Join(spaceID, "envelope-history.jsonl"), e)
}

type decisionRecord struct {
	TS            string `json:"ts"`
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
	Allowed       bool   `json:"allowed"`
}

// AppendDecision writes a capability-check outcome to
// <space>/capability-decisions.jsonl.
func (s *Sink) AppendDecision(spaceID, participantID, kind string, allowed bool) {
	s.writeLine(filepath.Join(spaceID, "capability-decisions.jsonl"), decisionRecord{
		TS:            time.Now().UTC().Format(time.RFC3339Nano),
		ParticipantID: participantID,
		Kind:          kind,
		Allowed:       allowed,
	})
}

// ParticipantLogPath returns the relative jsonl path for a participant's
// own output log, used by the HTTP lazy auto-connect sink.
func ParticipantLogPath(spaceID, participantID string) string {
	return filepath.Join(spaceID, "participants", fmt.Sprintf("%s.jsonl", participantID))
}

// AppendParticipantFrame writes a raw delivered frame to a participant's
// own output log, used by the log-backed virtual connection sink created
// for lazy auto-connect.
func (s *Sink) AppendParticipantFrame(spaceID, participantID string, frame []byte) error {
	var v json.RawMessage = frame
	s.writeLine(ParticipantLogPath(spaceID, participantID), v)
	return nil
}

// Close flushes and closes every open writer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
