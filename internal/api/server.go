package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nfcexposure/internal/config"
	"nfcexposure/internal/issues"
	"nfcexposure/internal/metrics"
	"nfcexposure/internal/model"
)

type Server struct {
	cfg      *config.Config
	metrics  *metrics.Store
	issues   *issues.Store
	variants []string
	logger   *slog.Logger
	version  string
}

type statusResponse struct {
	Status      string      `json:"status"`
	Time        string      `json:"time"`
	Version     string      `json:"version"`
	Experiments int         `json:"experiments"`
	Issues      int         `json:"issues"`
	Variants    []string    `json:"variants"`
	Study       studyStatus `json:"study"`
	Storage     bool        `json:"storage"`
	Kafka       bool        `json:"kafka"`
}

type studyStatus struct {
	TaskSecs    int     `json:"task_secs"`
	FreeSecs    int     `json:"free_secs"`
	NAValue     float64 `json:"na_value"`
	DeviceCount int     `json:"device_count"`
}

func NewServer(cfg *config.Config, metricsStore *metrics.Store, issuesStore *issues.Store, variants []string, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:      cfg,
		metrics:  metricsStore,
		issues:   issuesStore,
		variants: variants,
		logger:   logger,
		version:  version,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/experiments", s.handleExperiments)
	mux.HandleFunc("/experiments/", s.handleExperiments)
	mux.HandleFunc("/issues", s.handleIssues)
	mux.HandleFunc("/admin/clear", s.handleClear)
	mux.Handle("/prometheus", promhttp.Handler())
	return mux
}

// Start serves the results API until ctx is cancelled. It returns nil when the API is disabled.
func Start(ctx context.Context, cfg *config.Config, metricsStore *metrics.Store, issuesStore *issues.Store, variants []string, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	if !cfg.API.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", cfg.API.Addr)
	}
	server := NewServer(cfg, metricsStore, issuesStore, variants, logger, version)
	httpServer := &http.Server{Addr: cfg.API.Addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Version:  s.version,
		Variants: s.variants,
		Study: studyStatus{
			TaskSecs:    s.cfg.Study.TaskSecs,
			FreeSecs:    s.cfg.Study.FreeSecs,
			NAValue:     s.cfg.Study.NAValue,
			DeviceCount: s.cfg.Study.DeviceCount,
		},
		Storage: s.cfg.Storage.Enabled,
		Kafka:   s.cfg.Publish.Kafka.Enabled,
	}
	if s.metrics != nil {
		resp.Experiments = len(s.metrics.List())
	}
	if s.issues != nil {
		resp.Issues = s.issues.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{"experiments": []model.ExperimentResult{}, "count": 0})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/experiments")
	id = strings.TrimPrefix(id, "/")
	if id != "" {
		res, updated, ok := s.metrics.Get(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"experiment_id": id,
			"updated_at":    updated.Format(time.RFC3339Nano),
			"result":        res,
		})
		return
	}
	all := s.metrics.List()
	if r.URL.Query().Get("windows") != "true" {
		for i := range all {
			all[i].Window = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiments": all,
		"count":       len(all),
	})
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.issues == nil {
		writeJSON(w, http.StatusOK, map[string]any{"issues": []model.Issue{}, "count": 0})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Issue
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.issues.Since(ts)
	} else {
		list = s.issues.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issues": list,
		"count":  len(list),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.metrics != nil {
			s.metrics.Clear()
		}
		if s.issues != nil {
			s.issues.Clear()
		}
	case "issues":
		if s.issues != nil {
			s.issues.Clear()
		}
	case "experiments":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.logger != nil {
		s.logger.Info("api cleared", "target", target)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
