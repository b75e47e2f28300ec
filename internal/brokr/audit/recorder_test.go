package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

func testRecorder(t *testing.T) *Recorder {
	t.Helper()
	return NewRecorder(config.AuditCfg{
		Enabled:       true,
		Dir:           t.TempDir(),
		RetentionDays: 30,
		AppendTimeout: time.Second,
	})
}

func sampleRecord() Record {
	return Record{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:   "trace-1",
		DBAlias:   "main",
		Mode:      "direct",
		Kind:      "read",
		SQLDigest: DigestSQL("SELECT secret_token FROM vault"),
		Outcome:   OutcomeSuccess,
		Source:    "test",
	}
}

func TestAppendWritesDayFile(t *testing.T) {
	r := testRecorder(t)
	require.NoError(t, r.Append(sampleRecord()))
	require.NoError(t, r.Append(sampleRecord()))

	day := time.Now().UTC().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(r.Dir(), day+".jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestAppendNeverStoresRawSQL(t *testing.T) {
	r := testRecorder(t)
	require.NoError(t, r.Append(sampleRecord()))

	day := time.Now().UTC().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(r.Dir(), day+".jsonl"))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret_token")
	assert.Contains(t, string(data), "sha256:")
}

func TestAppendDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(config.AuditCfg{Enabled: false, Dir: dir})
	require.NoError(t, r.Append(sampleRecord()))

	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAppendBoundedWait(t *testing.T) {
	r := NewRecorder(config.AuditCfg{
		Enabled:       true,
		Dir:           t.TempDir(),
		AppendTimeout: 20 * time.Millisecond,
	})
	// occupy the writer slot so the append cannot proceed
	r.slot <- struct{}{}

	err := r.Append(sampleRecord())
	require.Error(t, err)
	assert.Equal(t, dberr.KindTimeout, dberr.KindOf(err))
}

func TestAppendBoundsSlowWrite(t *testing.T) {
	r := NewRecorder(config.AuditCfg{
		Enabled:       true,
		Dir:           t.TempDir(),
		AppendTimeout: 20 * time.Millisecond,
	})
	release := make(chan struct{})
	r.write = func(Record) error {
		<-release
		return nil
	}
	defer close(release)

	// The deadline covers the write itself, not just the slot wait, so a
	// stalled filesystem fails the append instead of hanging the caller.
	start := time.Now()
	err := r.Append(sampleRecord())
	require.Error(t, err)
	assert.Equal(t, dberr.KindTimeout, dberr.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnabledReflectsConfig(t *testing.T) {
	assert.True(t, testRecorder(t).Enabled())
	assert.False(t, NewRecorder(config.AuditCfg{Enabled: false}).Enabled())
}

func TestPruneRemovesExpiredFiles(t *testing.T) {
	r := NewRecorder(config.AuditCfg{
		Enabled:       true,
		Dir:           t.TempDir(),
		RetentionDays: 7,
		AppendTimeout: time.Second,
	})

	old := filepath.Join(r.Dir(), "2020-01-01.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, stale, stale))

	require.NoError(t, r.Append(sampleRecord()))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "expired file should be pruned")

	day := time.Now().UTC().Format("2006-01-02")
	_, err = os.Stat(filepath.Join(r.Dir(), day+".jsonl"))
	assert.NoError(t, err, "current file must survive pruning")
}

func TestPruneRunsAtMostOncePerDay(t *testing.T) {
	r := testRecorder(t)
	require.NoError(t, r.Append(sampleRecord()))

	// a file aged after the first prune run stays until the next day
	old := filepath.Join(r.Dir(), "2020-02-02.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	stale := time.Now().AddDate(0, 0, -90)
	require.NoError(t, os.Chtimes(old, stale, stale))

	require.NoError(t, r.Append(sampleRecord()))
	_, err := os.Stat(old)
	assert.NoError(t, err)
}

func TestDigestSQLStableAndOpaque(t *testing.T) {
	a := DigestSQL("SELECT 1")
	b := DigestSQL("SELECT 1")
	c := DigestSQL("SELECT 2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "sha256:"))
}
