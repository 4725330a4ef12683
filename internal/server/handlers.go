package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/runtime"
)

const maxRequestBody = 1 << 20

// QueryRequest is the body of POST /api/v1/sql.
type QueryRequest struct {
	Query string `json:"query"`
}

// EvalRequest is the body of POST /api/v1/eval.
type EvalRequest struct {
	Expr string `json:"expr"`
}

// StatementResult is the result table of one statement. NULL cells are
// encoded as JSON null, all other cells as their display string.
type StatementResult struct {
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

// QueryResponse is returned by the sql endpoint. On failure Results holds
// the statements that completed before the failing one.
type QueryResponse struct {
	Results []StatementResult `json:"results"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
}

// EvalResponse is returned by the eval endpoint.
type EvalResponse struct {
	Value *string `json:"value"`
	Type  string  `json:"type"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ColumnResponse describes one table column.
type ColumnResponse struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Repeated    bool   `json:"repeated"`
	Description string `json:"description,omitempty"`
}

// TableResponse describes one table.
type TableResponse struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Columns     []ColumnResponse `json:"columns,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(obj)
}

func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

// statusForError maps query errors to HTTP status codes.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch catalog.KindOf(err) {
	case catalog.KindParseError, catalog.KindTypeError, catalog.KindNotConstant,
		catalog.KindColumnNotFound:
		return http.StatusBadRequest
	case catalog.KindTableNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.Query.TimeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.cfg.Query.TimeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("q")
	} else if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "BadRequest", "query is required")
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	start := time.Now()
	results, err := s.rt.Execute(ctx, s.tables, req.Query)

	resp := QueryResponse{Results: make([]StatementResult, 0, len(results))}
	var rows int64
	for _, res := range results {
		resp.Results = append(resp.Results, encodeResult(res))
		rows += int64(res.NumRows())
	}
	s.stats.RecordQuery(err, time.Since(start).Nanoseconds(), rows)

	if err != nil {
		s.log.Info("query failed", "query", req.Query, "error", err)
		resp.Error = err.Error()
		resp.Kind = catalog.KindOf(err).String()
		writeJSON(w, statusForError(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func encodeResult(res *runtime.ResultList) StatementResult {
	out := StatementResult{
		Columns: res.Columns(),
		Rows:    make([][]*string, res.NumRows()),
	}
	for i := range out.Rows {
		values := res.Values(i)
		row := make([]*string, len(values))
		for j, v := range values {
			row[j] = encodeValue(v)
		}
		out.Rows[i] = row
	}
	return out
}

func encodeValue(v catalog.Value) *string {
	if v.IsNull() {
		return nil
	}
	s := v.String()
	return &s
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	txn := s.rt.NewTransaction(ctx, s.tables)
	v, err := runtime.EvaluateConstExpression(txn, req.Expr)
	if err != nil {
		writeJSONError(w, statusForError(err), catalog.KindOf(err).String(), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, EvalResponse{Value: encodeValue(v), Type: v.Type.String()})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables := s.tables.ListTables()
	resp := make([]TableResponse, 0, len(tables))
	for _, t := range tables {
		resp = append(resp, TableResponse{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, ok := s.tables.Describe(name)
	if !ok {
		err := catalog.TableNotFound(name)
		writeJSONError(w, http.StatusNotFound, catalog.KindOf(err).String(), err.Error())
		return
	}

	resp := TableResponse{Name: info.Name, Description: info.Description}
	for _, c := range info.Columns {
		resp.Columns = append(resp.Columns, ColumnResponse{
			Name:        c.Name,
			Type:        c.Type.String(),
			Nullable:    c.Nullable,
			Repeated:    c.Repeated,
			Description: c.Description,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"tables":       len(s.tables.ListTables()),
		"uptime":       time.Since(snap.StartTime).Round(time.Second).String(),
		"queries":      snap.QueriesExecuted,
		"avg_query_ms": snap.AvgQueryTimeMs(),
	})
}
