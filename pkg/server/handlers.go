package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mercurymon/mercurymon/pkg/coordinator"
	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/types"
)

type metricsResponse struct {
	State       coordinator.State `json:"state"`
	Metrics     types.Metrics     `json:"metrics"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Error       string            `json:"error,omitempty"`
}

type dailyHistoryResponse struct {
	Days      []types.UsageDay       `json:"days"`
	Temps     []types.TemperatureDay `json:"temps"`
	Periods   []types.PeriodEntry    `json:"periods"`
	TotalDays int                    `json:"totalDays"`
}

type hourlyHistoryResponse struct {
	Hours      []types.UsageHour `json:"hours"`
	TotalHours int               `json:"totalHours"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.updater.Snapshot()
	if !ok {
		writeJSONError(w, "no update cycle has completed yet", http.StatusServiceUnavailable)
		return
	}

	resp := metricsResponse{
		State:       s.updater.State(),
		Metrics:     snap.Metrics,
		LastUpdated: snap.LastUpdated,
	}
	if err := s.updater.LastError(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, resp)
}

func (s *Server) handleHistoryDaily(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.updater.Snapshot()
	if !ok {
		writeJSONError(w, "no update cycle has completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, dailyHistoryResponse{
		Days:      snap.Days,
		Temps:     snap.Temps,
		Periods:   snap.Periods,
		TotalDays: len(snap.Days),
	})
}

func (s *Server) handleHistoryHourly(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.updater.Snapshot()
	if !ok {
		writeJSONError(w, "no update cycle has completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, hourlyHistoryResponse{
		Hours:      snap.Hours,
		TotalHours: len(snap.Hours),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.updater.Refresh(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "forced update failed", slog.Any("error", err))
		writeJSONError(w, "update failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	snap, _ := s.updater.Snapshot()
	writeJSON(w, metricsResponse{
		State:       s.updater.State(),
		Metrics:     snap.Metrics,
		LastUpdated: snap.LastUpdated,
	})
}
