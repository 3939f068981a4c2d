package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/format"
	"github.com/winhowes/RemoteData/app/metrics"
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/runner"
	"github.com/winhowes/RemoteData/app/schema"
	"github.com/winhowes/RemoteData/app/store"
	"github.com/winhowes/RemoteData/app/transport"
)

// maxRequestBody caps inbound JSON bodies.
const maxRequestBody = 1 << 20

// server routes HTTP requests to the current runtime.
type server struct {
	mu         sync.RWMutex
	rt         *runtime
	lastReload time.Time

	metrics     *metrics.Metrics
	logger      *zap.Logger
	debug       bool
	metricsUser string
	metricsPass string
}

func (s *server) runtime() *runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rt
}

// swap installs rt and returns the runtime it replaced.
func (s *server) swap(rt *runtime) *runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.rt
	s.rt = rt
	s.lastReload = time.Now()
	if s.metrics != nil {
		s.metrics.MarkReload(s.lastReload)
	}
	return old
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /queries", s.listQueriesHandler)
	mux.HandleFunc("POST /queries/{name}", s.queryHandler)
	if s.debug {
		mux.HandleFunc("GET /data-sources", s.listDataSourcesHandler)
		mux.HandleFunc("POST /data-sources", s.putDataSourceHandler)
		mux.HandleFunc("GET /data-sources/{uuid}", s.getDataSourceHandler)
		mux.HandleFunc("DELETE /data-sources/{uuid}", s.deleteDataSourceHandler)
	}
	mux.HandleFunc("/_internal/healthz", s.healthzHandler)
	if s.metrics != nil {
		mux.Handle("/_internal/metrics", s.metrics.Handler(s.metricsUser, s.metricsPass))
	}
	return s.accessLog(mux)
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to the status returned to the caller. Problems
// with the request or configuration are 400, upstream failures 502.
func statusFor(err error) int {
	var (
		verr   *schema.ValidationError
		build  *runner.RequestBuildError
		decode *runner.DeserializationError
		terr   *transport.Error
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &build):
		return http.StatusBadRequest
	case errors.As(err, &decode), errors.As(err, &terr):
		return http.StatusBadGateway
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrUnknownService):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		body.Path = verr.Path
	}
	writeJSON(w, statusFor(err), body)
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return err
	}
	if len(data) > maxRequestBody {
		return errors.New("request body too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type queryRequest struct {
	// Input runs the query once.
	Input query.Variables `json:"input,omitempty"`
	// Inputs runs the query as a batch, even when empty.
	Inputs []query.Variables `json:"inputs,omitempty"`
	// Format renders currency, markdown and html fields for display.
	Format *FormatConfig `json:"format,omitempty"`
}

func (s *server) queryHandler(w http.ResponseWriter, r *http.Request) {
	rt := s.runtime()
	name := r.PathValue("name")

	if rt.limiter != nil {
		client := clientIP(r)
		if !rt.limiter.Allow(r.Context(), client) {
			s.logger.Warn("client exceeded rate limit", zap.String("client", client))
			if s.metrics != nil {
				s.metrics.IncRateLimit(client)
			}
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
	}

	q, ok := rt.currentCatalog().query(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown query " + name})
		return
	}

	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	var (
		res *runner.ExecutionResult
		err error
	)
	if req.Inputs != nil {
		res, err = rt.runner.ExecuteBatch(r.Context(), q, req.Inputs)
	} else {
		res, err = rt.runner.Execute(r.Context(), q, req.Input)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Format != nil {
		if err := format.Apply(res, rt.cfg.Format.merge(req.Format).options()); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

type queryInfo struct {
	Name       string            `json:"name"`
	DataSource string            `json:"data_source"`
	Method     string            `json:"method"`
	Inputs     query.InputSchema `json:"input_schema"`
}

func (s *server) listQueriesHandler(w http.ResponseWriter, r *http.Request) {
	c := s.runtime().currentCatalog()
	out := []queryInfo{}
	for _, n := range c.queryNames() {
		q, _ := c.query(n)
		out = append(out, queryInfo{
			Name:       n,
			DataSource: c.sourceName(q.DataSource()),
			Method:     q.Method(),
			Inputs:     q.InputSchema(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listDataSourcesHandler(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{Service: r.URL.Query().Get("service"), Origin: r.URL.Query().Get("origin")}
	recs, err := s.runtime().store.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) getDataSourceHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.runtime().store.Load(r.Context(), r.PathValue("uuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// putDataSourceHandler validates a config against its service schema and
// stores the sanitized copy.
func (s *server) putDataSourceHandler(w http.ResponseWriter, r *http.Request) {
	rt := s.runtime()
	var cfg datasource.Config
	if err := decodeBody(r, &cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	ds, err := rt.registry.FromConfig(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	stored := ds.Config()
	if err := rt.store.Put(r.Context(), stored); err != nil {
		writeError(w, err)
		return
	}
	s.refresh(r.Context(), rt)
	writeJSON(w, http.StatusCreated, stored)
}

func (s *server) deleteDataSourceHandler(w http.ResponseWriter, r *http.Request) {
	rt := s.runtime()
	if err := rt.store.Delete(r.Context(), r.PathValue("uuid")); err != nil {
		writeError(w, err)
		return
	}
	s.refresh(r.Context(), rt)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) refresh(ctx context.Context, rt *runtime) {
	if err := rt.rebuild(ctx, s.logger); err != nil {
		s.logger.Error("rebuilding catalog failed; keeping previous", zap.Error(err))
	}
}

// healthzHandler reports server readiness.
func (s *server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.lastReload
	s.mu.RUnlock()
	if !last.IsZero() {
		w.Header().Set("X-Last-Reload", last.UTC().Format(time.RFC3339))
	}
	w.WriteHeader(http.StatusOK)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
