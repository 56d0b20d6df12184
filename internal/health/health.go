// Package health tracks the state of the pipeline instances and serves it
// together with the prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syntrixbase/searchsync/internal/pipeline"
)

// Status represents the health status of the worker.
type Status string

const (
	// StatusOK indicates every instance is running.
	StatusOK Status = "ok"

	// StatusDegraded indicates some instances stopped while others run.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates no instance is running.
	StatusUnhealthy Status = "unhealthy"
)

// InstanceHealth represents the health of a single pipeline instance.
type InstanceHealth struct {
	Entity      string     `json:"entity"`
	Status      Status     `json:"status"`
	LastCycle   *time.Time `json:"lastCycle,omitempty"`
	Watermark   *time.Time `json:"watermark,omitempty"`
	CyclesTotal int64      `json:"cyclesTotal"`
	Documents   int64      `json:"documentsTotal"`
	Error       string     `json:"error,omitempty"`
}

// Report is the full health report.
type Report struct {
	Status    Status           `json:"status"`
	Uptime    string           `json:"uptime"`
	StartedAt time.Time        `json:"startedAt"`
	Instances []InstanceHealth `json:"instances"`
}

// Checker provides health check functionality.
type Checker struct {
	startedAt time.Time
	logger    *slog.Logger

	mu        sync.RWMutex
	instances map[string]*InstanceHealth
}

var _ pipeline.Observer = (*Checker)(nil)

// NewChecker creates a new health checker.
func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		startedAt: time.Now(),
		logger:    logger.With("component", "health"),
		instances: make(map[string]*InstanceHealth),
	}
}

// RegisterInstance registers an instance for health tracking.
func (h *Checker) RegisterInstance(entity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.instances[entity] = &InstanceHealth{Entity: entity, Status: StatusOK}
}

// CycleCompleted implements pipeline.Observer.
func (h *Checker) CycleCompleted(entity string, stats pipeline.CycleStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ih, ok := h.instances[entity]
	if !ok {
		return
	}
	now := time.Now()
	ih.LastCycle = &now
	ih.CyclesTotal++
	ih.Documents += int64(stats.Documents)
	if !stats.Watermark.IsZero() {
		wm := stats.Watermark
		ih.Watermark = &wm
	}
}

// InstanceFailed implements pipeline.Observer.
func (h *Checker) InstanceFailed(entity string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ih, ok := h.instances[entity]; ok {
		ih.Status = StatusUnhealthy
		ih.Error = err.Error()
	}
}

// GetReport returns the current health report.
func (h *Checker) GetReport() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := Report{
		Status:    StatusOK,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt: h.startedAt,
		Instances: make([]InstanceHealth, 0, len(h.instances)),
	}

	failed := 0
	for _, ih := range h.instances {
		report.Instances = append(report.Instances, *ih)
		if ih.Status == StatusUnhealthy {
			failed++
		}
	}
	sort.Slice(report.Instances, func(i, j int) bool {
		return report.Instances[i].Entity < report.Instances[j].Entity
	})

	switch {
	case failed == 0:
	case failed == len(h.instances):
		report.Status = StatusUnhealthy
	default:
		report.Status = StatusDegraded
	}
	return report
}

// Check returns the overall health status.
func (h *Checker) Check() Status {
	return h.GetReport().Status
}

// ServeHTTP implements http.Handler for health endpoint.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.GetReport()

	w.Header().Set("Content-Type", "application/json")

	switch report.Status {
	case StatusOK, StatusDegraded:
		w.WriteHeader(http.StatusOK)
	case StatusUnhealthy:
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(report)
}

// Handler returns the mux serving /health and /metrics.
func Handler(checker *Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", checker)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartServer serves Handler on addr until ctx ends.
func StartServer(ctx context.Context, addr string, checker *Checker) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(checker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	checker.logger.Info("health server starting", "address", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
