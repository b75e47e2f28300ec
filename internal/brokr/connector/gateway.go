package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

// Gateway forwards schema/query/execute calls to a remote service that
// holds the real database connection, authenticating with the descriptor's
// bearer credential. Idempotent reads retry transient network failures with
// exponential backoff; execute calls never retry, because after an ambiguous
// network failure a retried write could apply twice.
type Gateway struct {
	desc   config.DatabaseCfg
	cfg    config.GatewayCfg
	client *http.Client
}

func NewGateway(desc config.DatabaseCfg, cfg config.GatewayCfg) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBaseWait <= 0 {
		cfg.RetryBaseWait = 200 * time.Millisecond
	}
	return &Gateway{
		desc:   desc,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// wire envelope shared with the remote service.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *wireError      `json:"error,omitempty"`
	TraceID string          `json:"trace_id,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type wireRequest struct {
	SQL     string                 `json:"sql"`
	Params  map[string]interface{} `json:"params"`
	DBAlias string                 `json:"db_alias,omitempty"`
}

func (g *Gateway) Schema(ctx context.Context, table string) (*Schema, error) {
	q := url.Values{}
	if table != "" {
		q.Set("table", table)
	}
	q.Set("db_alias", g.desc.Alias)

	data, err := g.retryRead(ctx, func() (json.RawMessage, error) {
		return g.do(ctx, http.MethodGet, "/schema", q, nil)
	})
	if err != nil {
		return nil, err
	}

	var out Schema
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, dberr.Wrap(dberr.KindRemoteProtocol, err, "malformed schema response")
	}
	return &out, nil
}

func (g *Gateway) Query(ctx context.Context, sqlText string, params map[string]interface{}) (*Rows, error) {
	body := wireRequest{SQL: sqlText, Params: params, DBAlias: g.desc.Alias}
	data, err := g.retryRead(ctx, func() (json.RawMessage, error) {
		return g.do(ctx, http.MethodPost, "/query", nil, &body)
	})
	if err != nil {
		return nil, err
	}

	var out Rows
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, dberr.Wrap(dberr.KindRemoteProtocol, err, "malformed query response")
	}
	return &out, nil
}

func (g *Gateway) Execute(ctx context.Context, sqlText string, params map[string]interface{}) (int64, error) {
	body := wireRequest{SQL: sqlText, Params: params, DBAlias: g.desc.Alias}
	// Single attempt only.
	data, err := g.do(ctx, http.MethodPost, "/execute", nil, &body)
	if err != nil {
		return 0, err
	}

	var out struct {
		RowsAffected int64 `json:"rows_affected"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, dberr.Wrap(dberr.KindRemoteProtocol, err, "malformed execute response")
	}
	return out.RowsAffected, nil
}

// retryRead wraps an idempotent call with bounded exponential backoff.
// Only transient connection failures are retried.
func (g *Gateway) retryRead(ctx context.Context, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.cfg.RetryBaseWait

	var data json.RawMessage
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		d, err := call()
		if err != nil {
			if dberr.Is(err, dberr.KindConnection) {
				logger.L().Debugw("transient gateway failure, will retry", "db_alias", g.desc.Alias, "attempt", attempt)
				return err
			}
			return backoff.Permanent(err)
		}
		data = d
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.cfg.MaxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, query url.Values, body *wireRequest) (json.RawMessage, error) {
	u, err := url.Parse(g.desc.APIURL)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindValidation, err, "invalid gateway url")
	}
	u.Path = joinPath(u.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, dberr.Wrap(dberr.KindValidation, err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindValidation, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+g.desc.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, dberr.Wrap(dberr.KindTimeout, err, "gateway request canceled or timed out")
		}
		return nil, dberr.Wrap(dberr.KindConnection, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, dberr.Wrap(dberr.KindConnection, err, "read gateway response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, dberr.New(dberr.KindRemoteAuth, "gateway rejected the credential (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, remoteError(raw, dberr.KindValidation, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, remoteError(raw, dberr.KindRemoteProtocol, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, dberr.Wrap(dberr.KindRemoteProtocol, err, "undecodable gateway response")
	}
	if !env.Success {
		if env.Error != nil {
			return nil, dberr.New(kindFromWire(env.Error.Kind), "%s", env.Error.Message)
		}
		return nil, dberr.New(dberr.KindRemoteProtocol, "gateway reported failure without detail")
	}
	return env.Data, nil
}

// remoteError prefers the structured error from the envelope when the body
// carries one, falling back to the given kind.
func remoteError(raw []byte, fallback dberr.Kind, status int) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		return dberr.New(kindFromWire(env.Error.Kind), "%s", env.Error.Message)
	}
	return dberr.New(fallback, "gateway returned status %d", status)
}

// kindFromWire maps the wire contract's error-kind tags onto local kinds.
// Unknown tags degrade to a protocol error rather than guessing.
func kindFromWire(kind string) dberr.Kind {
	switch dberr.Kind(kind) {
	case dberr.KindUnknownAlias, dberr.KindAmbiguousDefault, dberr.KindValidation,
		dberr.KindPermissionDenied, dberr.KindConnection, dberr.KindSyntax,
		dberr.KindConstraintViolation, dberr.KindTimeout, dberr.KindRemoteAuth,
		dberr.KindRemoteProtocol, dberr.KindOther:
		return dberr.Kind(kind)
	}
	return dberr.KindRemoteProtocol
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case base[len(base)-1] == '/':
		return base + p[1:]
	default:
		return base + p
	}
}
