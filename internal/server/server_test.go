package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventql/eventql-sub000/internal/config"
	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/runtime"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

func testTables(t *testing.T) *storage.TableRepository {
	t.Helper()
	tbl := storage.NewMemTable("cities", []storage.Field{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "city", Type: catalog.TypeString, Description: "city name"},
	})
	rows := [][]catalog.Value{
		{catalog.NewInteger(1), catalog.NewString("berlin")},
		{catalog.NewInteger(2), catalog.Null()},
	}
	for _, r := range rows {
		if err := tbl.AddRow(r); err != nil {
			t.Fatalf("AddRow: %v", err)
		}
	}
	repo := storage.NewTableRepository()
	repo.AddTable(tbl)
	return repo
}

func setupTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	return New(cfg, logger.NewNop(), runtime.NewRuntime(), testTables(t))
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestSQLEndpoint(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sql", `{"query": "SELECT id, city FROM cities ORDER BY id; SELECT 1 + 1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp QueryResponse
	decode(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	first := resp.Results[0]
	if strings.Join(first.Columns, ",") != "id,city" {
		t.Errorf("columns = %v", first.Columns)
	}
	if len(first.Rows) != 2 || *first.Rows[0][1] != "berlin" || first.Rows[1][1] != nil {
		t.Errorf("rows = %v", first.Rows)
	}
	if *resp.Results[1].Rows[0][0] != "2" {
		t.Errorf("second statement = %v", resp.Results[1].Rows)
	}

	snap := s.Stats().Snapshot()
	if snap.QueriesSucceeded != 1 || snap.RowsReturned != 3 {
		t.Errorf("succeeded = %d, rows = %d", snap.QueriesSucceeded, snap.RowsReturned)
	}
}

func TestStatisticsSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		succeeded int64
		failed    int64
		avgMs     float64
	}{
		{"empty", nil, 0, 0, 0},
		{"successes", []error{nil, nil}, 2, 0, 2},
		{"mixed", []error{nil, catalog.ColumnNotFound("x"), catalog.TableNotFound("t")}, 1, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewStatistics()
			for _, err := range tt.errs {
				stats.RecordQuery(err, int64(2*time.Millisecond), 1)
			}
			snap := stats.Snapshot()
			if snap.QueriesSucceeded != tt.succeeded || snap.QueriesFailed != tt.failed {
				t.Errorf("succeeded = %d, failed = %d", snap.QueriesSucceeded, snap.QueriesFailed)
			}
			if got := snap.AvgQueryTimeMs(); got != tt.avgMs {
				t.Errorf("avg = %f, want %f", got, tt.avgMs)
			}

			// the snapshot is detached from later updates
			snap.Errors["ColumnNotFoundError"] = 100
			stats.RecordQuery(nil, 0, 0)
			again := stats.Snapshot()
			if again.QueriesExecuted != int64(len(tt.errs))+1 {
				t.Errorf("executed = %d", again.QueriesExecuted)
			}
			if again.Errors["ColumnNotFoundError"] == 100 {
				t.Error("snapshot shares its error map with the tracker")
			}
		})
	}
}

func TestSQLEndpointGet(t *testing.T) {
	s := setupTestServer(t, nil)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/sql?q=SELECT+count(1)+FROM+cities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp QueryResponse
	decode(t, rec, &resp)
	if *resp.Results[0].Rows[0][0] != "2" {
		t.Errorf("rows = %v", resp.Results[0].Rows)
	}
}

func TestSQLEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"bad json", `{"query":`, http.StatusBadRequest, "BadRequest"},
		{"empty query", `{"query": ""}`, http.StatusBadRequest, "BadRequest"},
		{"parse error", `{"query": "SELECT FROM"}`, http.StatusBadRequest, "ParseError"},
		{"unknown table", `{"query": "SELECT * FROM nope"}`, http.StatusNotFound, "TableNotFoundError"},
		{"unknown column", `{"query": "SELECT nope FROM cities"}`, http.StatusBadRequest, "ColumnNotFoundError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, nil)
			rec := doRequest(t, s, http.MethodPost, "/api/v1/sql", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			var resp ErrorResponse
			decode(t, rec, &resp)
			if resp.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.kind)
			}
		})
	}
}

func TestPartialResultsOnFailure(t *testing.T) {
	s := setupTestServer(t, nil)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/sql", `{"query": "SELECT 1; SELECT nope FROM cities"}`)
	var resp QueryResponse
	decode(t, rec, &resp)
	if len(resp.Results) != 0 {
		// planning fails before any statement runs
		t.Errorf("results = %v", resp.Results)
	}
	if resp.Kind != "ColumnNotFoundError" {
		t.Errorf("kind = %q", resp.Kind)
	}
	if s.Stats().Snapshot().Errors["ColumnNotFoundError"] != 1 {
		t.Errorf("errors = %v", s.Stats().Snapshot().Errors)
	}
}

func TestEvalEndpoint(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/eval", `{"expr": "FROM_TIMESTAMP(1441408424)"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp EvalResponse
	decode(t, rec, &resp)
	if resp.Value == nil || *resp.Value != "2015-09-04 23:13:44" {
		t.Errorf("value = %v", resp.Value)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/eval", `{"expr": "id + 1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Kind != "NotConstantError" {
		t.Errorf("kind = %q", errResp.Kind)
	}
}

func TestTableEndpoints(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/tables", "")
	var tables []TableResponse
	decode(t, rec, &tables)
	if len(tables) != 1 || tables[0].Name != "cities" {
		t.Errorf("tables = %+v", tables)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/tables/cities", "")
	var table TableResponse
	decode(t, rec, &table)
	if len(table.Columns) != 2 || table.Columns[1].Type != "STRING" || table.Columns[1].Description != "city name" {
		t.Errorf("table = %+v", table)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/tables/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestServer(t, nil)
	doRequest(t, s, http.MethodPost, "/api/v1/sql", `{"query": "SELECT 1"}`)

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	for _, want := range []string{
		`csql_queries_total{status="success"} 1`,
		`csql_rows_returned_total 1`,
		`csql_query_errors_total{kind="ParseError"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}

	rec = doRequest(t, s, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Server.Users = []config.UserConfig{{Name: "admin", PasswordHash: string(hash)}}
	s := setupTestServer(t, cfg)

	tests := []struct {
		name   string
		user   string
		pass   string
		status int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"unknown user", "bob", "secret", http.StatusUnauthorized},
		{"valid", "admin", "secret", http.StatusOK},
		{"case-insensitive user", "ADMIN", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	// health stays open
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a := NewAuthenticator([]config.UserConfig{{Name: "u", PasswordHash: hash}})
	if err := a.Authenticate("u", "pw"); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
	if NewAuthenticator(nil) != nil {
		t.Error("no users should disable authentication")
	}
}

func TestStartStop(t *testing.T) {
	s := setupTestServer(t, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Serve(listener); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	body := bytes.NewBufferString(`{"query": "SELECT city FROM cities WHERE id = 1"}`)
	resp, err := http.Post("http://"+s.Addr().String()+"/api/v1/sql", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var qr QueryResponse
	err = json.NewDecoder(resp.Body).Decode(&qr)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *qr.Results[0].Rows[0][0] != "berlin" {
		t.Errorf("rows = %v", qr.Results[0].Rows)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStatusForError(t *testing.T) {
	if got := statusForError(context.DeadlineExceeded); got != http.StatusGatewayTimeout {
		t.Errorf("deadline = %d", got)
	}
	if got := statusForError(catalog.NewError(catalog.KindRuntimeError, "boom")); got != http.StatusInternalServerError {
		t.Errorf("runtime = %d", got)
	}
}
