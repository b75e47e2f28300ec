package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

func gatewayFor(t *testing.T, url string) *Gateway {
	t.Helper()
	desc := config.DatabaseCfg{Alias: "remote", Mode: "proxied", APIURL: url, APIToken: "tok-123"}
	return NewGateway(desc, config.GatewayCfg{
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		RetryBaseWait: 5 * time.Millisecond,
	})
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: raw, TraceID: "t-1"})
}

// dropConn kills the TCP connection so the client sees a transport error.
func dropConn(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("test server does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	_ = conn.Close()
}

func TestGatewayQuery(t *testing.T) {
	var gotAuth string
	var gotBody wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(w, Rows{Columns: []string{"id"}, Rows: [][]interface{}{{float64(1)}}})
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	rows, err := g.Query(context.Background(), "SELECT id FROM t WHERE x = :x", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rows.Columns)
	assert.Len(t, rows.Rows, 1)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "SELECT id FROM t WHERE x = :x", gotBody.SQL)
	assert.Equal(t, "remote", gotBody.DBAlias)
}

func TestGatewaySchemaRetriesTransientFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			dropConn(w)
			return
		}
		writeEnvelope(w, Schema{DBAlias: "remote", Columns: []Column{{TableName: "t", ColumnName: "id", DataType: "int"}}})
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	schema, err := g.Schema(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	require.Len(t, schema.Columns, 1)
	assert.Equal(t, "id", schema.Columns[0].ColumnName)
}

func TestGatewaySchemaGivesUpAfterRetryBudget(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		dropConn(w)
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Schema(context.Background(), "t")
	require.Error(t, err)
	assert.Equal(t, dberr.KindConnection, dberr.KindOf(err))
	// initial attempt plus two retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGatewayExecuteNeverRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		dropConn(w)
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Execute(context.Background(), "DELETE FROM t", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindConnection, dberr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGatewayExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/execute", r.URL.Path)
		writeEnvelope(w, map[string]int64{"rows_affected": 3})
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	affected, err := g.Execute(context.Background(), "UPDATE t SET x = :x", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
}

func TestGatewayAuthFailureIsPermanent(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindRemoteAuth, dberr.KindOf(err))
	// not retried despite being on the read path
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGatewayEnvelopeErrorKindMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(envelope{
			Success: false,
			Error:   &wireError{Kind: "constraint_violation", Message: "duplicate key"},
		})
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Execute(context.Background(), "INSERT INTO t VALUES (1)", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindConstraintViolation, dberr.KindOf(err))
}

func TestGatewayBadRequestMapsToValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindValidation, dberr.KindOf(err))
}

func TestGatewayUndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	g := gatewayFor(t, srv.URL)
	_, err := g.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindRemoteProtocol, dberr.KindOf(err))
}
