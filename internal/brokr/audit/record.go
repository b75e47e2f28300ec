// Package audit appends one durable record per brokered request and prunes
// old records by retention age. Records carry a non-reversible digest of the
// SQL text; raw statements and parameter values never hit disk, since either
// may embed secrets.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// Outcomes of a brokered request.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Record is one audit entry. Created exactly once per request by the
// broker; never mutated after creation.
type Record struct {
	TS           string `json:"ts"` // RFC3339 UTC
	TraceID      string `json:"trace_id"`
	DBAlias      string `json:"db_alias"`
	Mode         string `json:"mode"`
	Kind         string `json:"kind,omitempty"` // read | write | destructive; empty if classification failed
	SQLDigest    string `json:"sql_digest"`
	Outcome      string `json:"outcome"` // success | error
	ErrorKind    string `json:"error_kind,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	RowsAffected *int64 `json:"rows_affected,omitempty"` // affected count for writes, row count for reads
	Source       string `json:"source,omitempty"`
}

// DigestSQL returns the non-reversible digest stored in place of raw SQL.
func DigestSQL(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return "sha256:" + hex.EncodeToString(sum[:])
}
