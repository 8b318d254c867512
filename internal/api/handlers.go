package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/lifecycle"
	"github.com/wonny/insiderbot/internal/scheduler"
	"github.com/wonny/insiderbot/pkg/logger"
)

// StatusHandler exposes the running system's state: portfolio,
// positions, recent signals, and job history, plus manual triggers
// for the cycle and position liquidation.
type StatusHandler struct {
	manager   *lifecycle.Manager
	signals   contracts.SignalRepository
	positions contracts.PositionRepository
	sched     *scheduler.Scheduler
	mode      string
	log       *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	manager *lifecycle.Manager,
	signals contracts.SignalRepository,
	positions contracts.PositionRepository,
	sched *scheduler.Scheduler,
	mode string,
	log *logger.Logger,
) *StatusHandler {
	return &StatusHandler{
		manager:   manager,
		signals:   signals,
		positions: positions,
		sched:     sched,
		mode:      mode,
		log:       log,
	}
}

// Health returns service liveness
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "insiderbot",
		"mode":    h.mode,
	})
}

// GetPortfolio returns the current portfolio snapshot
// GET /api/portfolio
func (h *StatusHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	pf := h.manager.Portfolio()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cash":           pf.Cash,
		"reserved":       pf.Reserved,
		"exposure":       pf.Exposure(),
		"value":          pf.Value(),
		"open_positions": pf.OpenCount(),
	})
}

// GetPositions returns the live (non-CLOSED) positions
// GET /api/positions
func (h *StatusHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.ListOpen(r.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to list open positions")
		respondError(w, http.StatusInternalServerError, "failed to retrieve positions")
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetClosedPositions returns recent trade history
// GET /api/positions/closed?limit=50
func (h *StatusHandler) GetClosedPositions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	positions, err := h.positions.ListClosed(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list closed positions")
		respondError(w, http.StatusInternalServerError, "failed to retrieve positions")
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetSignals returns the most recently generated signals
// GET /api/signals?limit=50
func (h *StatusHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	signals, err := h.signals.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list signals")
		respondError(w, http.StatusInternalServerError, "failed to retrieve signals")
		return
	}
	respondJSON(w, http.StatusOK, signals)
}

// GetJobs returns scheduler job history
// GET /api/jobs
func (h *StatusHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{})
	for _, name := range h.sched.Jobs() {
		history, err := h.sched.History(name)
		if err != nil {
			continue
		}
		latest, _ := history.Latest()
		out[name] = map[string]interface{}{
			"runs":         len(history.Results),
			"success_rate": history.SuccessRate(),
			"latest":       latest,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// TriggerCycle kicks off a trading cycle outside the schedule
// POST /api/cycle
func (h *StatusHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.RunNow("trading_cycle"); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cycle triggered"})
}

// LiquidatePosition explicitly closes an open position
// POST /api/positions/{ticker}/liquidate
func (h *StatusHandler) LiquidatePosition(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	position, err := h.manager.Liquidate(r.Context(), ticker)
	if err != nil {
		if contracts.IsDataUnavailable(err) {
			respondError(w, http.StatusServiceUnavailable, "no current price for "+ticker)
			return
		}
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, position)
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
