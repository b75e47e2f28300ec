// Package broker orchestrates a request: resolve the descriptor, classify
// the statement, enforce the permission tier, dispatch to the right
// connector, and record exactly one audit entry. Both access modes sit
// behind the connector contract, so none of the logic here branches on mode.
package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaibhaw-/BrokR/internal/brokr/audit"
	"github.com/vaibhaw-/BrokR/internal/brokr/classify"
	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/connector"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

// Broker is the single entry point for callers. Safe for concurrent use.
type Broker struct {
	snapshot   func() *config.Config
	recorder   *audit.Recorder
	local      *connector.Local
	newGateway func(config.DatabaseCfg, config.GatewayCfg) connector.Connector
	source     string
	now        func() time.Time
}

// New builds a broker over the current config snapshot. source tags audit
// records with the calling surface (e.g. "cli.query").
func New(recorder *audit.Recorder, source string) *Broker {
	return &Broker{
		snapshot: config.Get,
		recorder: recorder,
		local:    connector.NewLocal(config.Get().Pool),
		newGateway: func(d config.DatabaseCfg, g config.GatewayCfg) connector.Connector {
			return connector.NewGateway(d, g)
		},
		source: source,
		now:    time.Now,
	}
}

// Close releases pooled local connections.
func (b *Broker) Close() error {
	return b.local.Close()
}

// GetSchema lists columns for the resolved database, optionally scoped to
// one table. Schema lookups are reads; every tier permits them.
func (b *Broker) GetSchema(ctx context.Context, table, alias string) (*connector.Schema, error) {
	cfg := b.snapshot()
	desc, err := cfg.Resolve(alias)
	if err != nil {
		return nil, err
	}

	digestText := "SCHEMA"
	if table != "" {
		digestText += " " + table
	}
	start := b.now()

	conn, err := b.connectorFor(desc, cfg)
	if err != nil {
		b.emit(desc, classify.KindRead, digestText, start, nil, err)
		return nil, err
	}
	schema, err := conn.Schema(ctx, table)
	b.emit(desc, classify.KindRead, digestText, start, nil, err)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// RunQuery executes a read statement and returns normalized rows.
func (b *Broker) RunQuery(ctx context.Context, sqlText string, params map[string]interface{}, alias string) (*connector.Rows, error) {
	cfg := b.snapshot()
	desc, err := cfg.Resolve(alias)
	if err != nil {
		// No alias was resolved; nothing to audit against.
		return nil, err
	}
	start := b.now()

	kind, err := classify.Classify(sqlText)
	if err != nil {
		b.emit(desc, "", sqlText, start, nil, err)
		return nil, err
	}
	if kind != classify.KindRead {
		err := dberr.New(dberr.KindValidation, "%s statements are not allowed on the query path; use execute", kind)
		b.emit(desc, kind, sqlText, start, nil, err)
		return nil, err
	}
	if err := b.checkTier(desc, kind); err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return nil, err
	}

	conn, err := b.connectorFor(desc, cfg)
	if err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return nil, err
	}
	rows, err := conn.Query(ctx, sqlText, params)
	if err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return nil, err
	}
	count := int64(len(rows.Rows))
	b.emit(desc, kind, sqlText, start, &count, nil)
	return rows, nil
}

// RunExecute executes a write or destructive statement and returns the
// affected-row count.
func (b *Broker) RunExecute(ctx context.Context, sqlText string, params map[string]interface{}, alias string) (int64, error) {
	cfg := b.snapshot()
	desc, err := cfg.Resolve(alias)
	if err != nil {
		return 0, err
	}
	start := b.now()

	kind, err := classify.Classify(sqlText)
	if err != nil {
		b.emit(desc, "", sqlText, start, nil, err)
		return 0, err
	}
	if kind == classify.KindRead {
		err := dberr.New(dberr.KindValidation, "read statements are not allowed on the execute path; use query")
		b.emit(desc, kind, sqlText, start, nil, err)
		return 0, err
	}
	if err := b.checkTier(desc, kind); err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return 0, err
	}

	conn, err := b.connectorFor(desc, cfg)
	if err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return 0, err
	}
	affected, err := conn.Execute(ctx, sqlText, params)
	if err != nil {
		b.emit(desc, kind, sqlText, start, nil, err)
		return 0, err
	}
	b.emit(desc, kind, sqlText, start, &affected, nil)
	return affected, nil
}

// checkTier enforces kind <= tier. A violation never reaches a connector.
func (b *Broker) checkTier(desc config.DatabaseCfg, kind classify.Kind) error {
	if desc.Permission.Allows(kind) {
		return nil
	}
	return dberr.New(dberr.KindPermissionDenied,
		"%s statements require a higher permission tier than %q on %q", kind, desc.Permission, desc.Alias)
}

func (b *Broker) connectorFor(desc config.DatabaseCfg, cfg *config.Config) (connector.Connector, error) {
	if desc.Mode == "proxied" {
		return b.newGateway(desc, cfg.Gateway), nil
	}
	return b.local.Connector(desc)
}

// emit writes the audit record for one request. An append failure is
// reported on the log channel and never alters the caller's result.
func (b *Broker) emit(desc config.DatabaseCfg, kind classify.Kind, sqlText string, start time.Time, rows *int64, reqErr error) {
	rec := audit.Record{
		TS:           b.now().UTC().Format(time.RFC3339Nano),
		TraceID:      uuid.NewString(),
		DBAlias:      desc.Alias,
		Mode:         desc.Mode,
		Kind:         string(kind),
		SQLDigest:    audit.DigestSQL(sqlText),
		Outcome:      audit.OutcomeSuccess,
		DurationMS:   b.now().Sub(start).Milliseconds(),
		RowsAffected: rows,
		Source:       b.source,
	}
	if reqErr != nil {
		rec.Outcome = audit.OutcomeError
		rec.ErrorKind = string(dberr.KindOf(reqErr))
	}

	if err := b.recorder.Append(rec); err != nil {
		logger.L().Errorw("audit append failed",
			"db_alias", rec.DBAlias, "trace_id", rec.TraceID, "outcome", rec.Outcome, "err", err)
	}
}
