package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

// Recorder appends records to per-day JSONL files under the configured
// directory and prunes files older than the retention window.
//
// Append is bounded: if the writer slot cannot be claimed within the
// configured timeout the append fails, and the caller reports that through
// its fallback channel instead of failing the request.
type Recorder struct {
	cfg config.AuditCfg

	// slot serializes writers; capacity 1 makes it a lock with a bounded wait.
	slot chan struct{}

	lastPrune string // YYYY-MM-DD of the last prune run, guarded by slot
	now       func() time.Time
	write     func(Record) error
}

func NewRecorder(cfg config.AuditCfg) *Recorder {
	if cfg.AppendTimeout <= 0 {
		cfg.AppendTimeout = 2 * time.Second
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Dir == "" {
		cfg.Dir = "./logs/audit"
	}
	r := &Recorder{
		cfg:  cfg,
		slot: make(chan struct{}, 1),
		now:  time.Now,
	}
	r.write = r.writeRecord
	return r
}

// Enabled reports whether audit writes are configured on.
func (r *Recorder) Enabled() bool { return r.cfg.Enabled }

// Dir returns the audit log directory.
func (r *Recorder) Dir() string { return r.cfg.Dir }

// Append durably writes one record. It never blocks past the configured
// append timeout: the deadline covers both waiting for the writer slot and
// the file I/O itself, so a stalled filesystem can't hang the caller.
func (r *Recorder) Append(rec Record) error {
	if !r.cfg.Enabled {
		return nil
	}

	t := time.NewTimer(r.cfg.AppendTimeout)
	defer t.Stop()
	select {
	case r.slot <- struct{}{}:
	case <-t.C:
		return dberr.New(dberr.KindTimeout, "audit append timed out after %s", r.cfg.AppendTimeout)
	}

	// The writer holds the slot until its I/O finishes, even if we give up
	// waiting for it, so a slow disk never gets concurrent appenders.
	done := make(chan error, 1)
	go func() {
		defer func() { <-r.slot }()
		done <- r.write(rec)
	}()

	select {
	case err := <-done:
		return err
	case <-t.C:
		return dberr.New(dberr.KindTimeout, "audit append timed out after %s", r.cfg.AppendTimeout)
	}
}

func (r *Recorder) writeRecord(rec Record) error {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return dberr.Wrap(dberr.KindOther, err, "create audit dir")
	}

	day := r.now().UTC().Format("2006-01-02")
	path := filepath.Join(r.cfg.Dir, day+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return dberr.Wrap(dberr.KindOther, err, "open audit file")
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return dberr.Wrap(dberr.KindOther, err, "encode audit record")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return dberr.Wrap(dberr.KindOther, err, "write audit record")
	}

	r.pruneIfDue(day)
	return nil
}

// pruneIfDue deletes audit files older than the retention window, at most
// once per day. Individual unlink failures are logged and skipped.
func (r *Recorder) pruneIfDue(today string) {
	if r.lastPrune == today {
		return
	}
	r.lastPrune = today

	matches, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.jsonl"))
	if err != nil {
		return
	}
	cutoff := r.now().UTC().AddDate(0, 0, -r.cfg.RetentionDays)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().UTC().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				logger.L().Warnw("failed to prune audit file", "path", path, "err", err)
				continue
			}
			logger.L().Infow("pruned audit file", "path", path)
		}
	}
}
