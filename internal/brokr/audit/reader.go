package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ReadResult is one record streamed from the audit log, or a decode error
// for a malformed line. Malformed lines don't stop the stream.
type ReadResult struct {
	Record Record
	Err    error
}

// ReadRecords streams every record from the JSONL files under dir in file
// order (files are named by day, so sorting names sorts by time). Cancelling
// ctx stops the producer and closes the channel, so callers that stop reading
// early don't strand the goroutine.
func ReadRecords(ctx context.Context, dir string) <-chan ReadResult {
	out := make(chan ReadResult)
	go func() {
		defer close(out)
		matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		if err != nil {
			send(ctx, out, ReadResult{Err: err})
			return
		}
		sort.Strings(matches)
		for _, path := range matches {
			if !readFile(ctx, path, out) {
				return
			}
		}
	}()
	return out
}

// readFile streams one file's records; it returns false once ctx is done.
func readFile(ctx context.Context, path string, out chan<- ReadResult) bool {
	f, err := os.Open(path)
	if err != nil {
		return send(ctx, out, ReadResult{Err: err})
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			if !send(ctx, out, ReadResult{Err: err}) {
				return false
			}
			continue
		}
		if !send(ctx, out, ReadResult{Record: rec}) {
			return false
		}
	}
	if err := scanner.Err(); err != nil {
		return send(ctx, out, ReadResult{Err: err})
	}
	return true
}

func send(ctx context.Context, out chan<- ReadResult, r ReadResult) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Filter decides whether a record matches. Filters combine with AND logic.
type Filter func(Record) bool

func ByAlias(alias string) Filter {
	return func(r Record) bool { return r.DBAlias == alias }
}

func ByOutcome(outcome string) Filter {
	return func(r Record) bool { return r.Outcome == outcome }
}

func ByKind(kind string) Filter {
	return func(r Record) bool { return r.Kind == kind }
}

// After matches records at or after t. Records with unparseable timestamps
// never match time filters.
func After(t time.Time) Filter {
	return func(r Record) bool {
		ts, err := time.Parse(time.RFC3339, r.TS)
		return err == nil && !ts.Before(t)
	}
}

// Before matches records at or before t.
func Before(t time.Time) Filter {
	return func(r Record) bool {
		ts, err := time.Parse(time.RFC3339, r.TS)
		return err == nil && !ts.After(t)
	}
}

// MatchAll reports whether a record passes every filter.
func MatchAll(r Record, filters []Filter) bool {
	for _, f := range filters {
		if !f(r) {
			return false
		}
	}
	return true
}
