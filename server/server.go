package server

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/flow"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes bounds the size of a request body
const maxBodyBytes = 32 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// Service is the classification service exposed over HTTP
	Service interface {
		Classify(rec *flow.Record) (classify.Result, error)
		ClassifyBatch(recs []*flow.Record) []classify.BatchItem
		HealthCheck() classify.Health
	}

	// Server exposes the classification service over HTTP
	Server struct {
		Address string // Default :8000
		service Service
		metrics prometheus.Gatherer
		conf    config.ServerStaticCfg
		running config.ServerRunningCfg
		log     *log.Logger
	}

	// errorResponse is returned for every failed request
	errorResponse struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}

	// batchResponse lists the outcome of each record of a batch in order
	batchResponse struct {
		Count   int           `json:"count"`
		Failed  int           `json:"failed"`
		Results []batchResult `json:"results"`
	}

	// batchResult carries either a result or an error for one record
	batchResult struct {
		Index int    `json:"index"`
		UID   string `json:"uid,omitempty"`
		*classify.Result
		Error  string `json:"error,omitempty"`
		Detail string `json:"detail,omitempty"`
	}
)

// New creates a server for service listening on the configured address.
// The /metrics endpoint serves metrics, it is left out when metrics is nil.
func New(conf *config.Config, service Service, metrics prometheus.Gatherer, logger *log.Logger) *Server {
	return &Server{
		Address: conf.S.Server.ListenAddress,
		service: service,
		metrics: metrics,
		conf:    conf.S.Server,
		running: conf.R.Server,
		log:     logger,
	}
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.predict).Methods(http.MethodPost)
	r.HandleFunc("/predict/batch", s.predictBatch).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.Use(s.logRequests)
	return r
}

// ListenAndServe serves requests until ctx is done, then shuts the server
// down, giving in-flight requests the configured shutdown timeout to finish
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.running.ReadTimeout,
		WriteTimeout: s.running.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.WithField("address", listener.Addr().String()).Info("API server starting")
		errs <- srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.log.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.running.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("API server exited")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.HealthCheck())
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := flow.Decode(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.service.Classify(rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) predictBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var recs []*flow.Record
	if err := json.Unmarshal(body, &recs); err != nil {
		s.writeError(w, &features.ValidationError{Field: flow.Body, Reason: "malformed JSON batch: " + err.Error()})
		return
	}
	if len(recs) == 0 {
		s.writeError(w, &features.ValidationError{Field: flow.Body, Reason: "batch contains no records"})
		return
	}
	if len(recs) > s.conf.MaxBatchSize {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:  classify.KindValidation,
			Detail: fmt.Sprintf("batch of %d records exceeds the limit of %d", len(recs), s.conf.MaxBatchSize),
		})
		return
	}

	resp := batchResponse{
		Count:   len(recs),
		Results: make([]batchResult, len(recs)),
	}
	for i, item := range s.service.ClassifyBatch(recs) {
		result := batchResult{Index: i, UID: item.UID}
		if item.Err != nil {
			resp.Failed++
			result.Error = classify.KindOf(item.Err)
			result.Detail = item.Err.Error()
		} else {
			res := item.Result
			result.Result = &res
		}
		resp.Results[i] = result
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// readBody reads the request body, rejecting bodies over maxBodyBytes
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &features.ValidationError{Field: flow.Body, Reason: "failed to read request body: " + err.Error()}
	}
	return body, nil
}

// writeError reports err with the status matching its kind. Internal
// failures are logged by the classification service.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if classify.IsClientError(err) {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, errorResponse{Error: classify.KindOf(err), Detail: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode response")
		http.Error(w, `{"error":"internal","detail":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		s.log.WithError(err).Debug("Failed to write response")
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests tags each request with an id and logs it at debug level
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		}).Debug("Handled request")
	})
}
