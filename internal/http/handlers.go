package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"waterledger/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Rollback confirmation
// gets its own code so the client can re-submit with confirm set.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrDuplicateMeter),
		errors.Is(err, core.ErrMonthExists),
		errors.Is(err, core.ErrLastMonth):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrRollbackConfirm):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "confirm_rollback"})
	case errors.Is(err, core.ErrInvalidReading),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidSnapshot):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady reports not-ready while running on in-memory storage only.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"checks": map[string]string{"storage": "in-memory fallback, data will not survive restarts"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"storage": "ok"},
	})
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users":       s.ledger.List(r.URL.Query().Get("sort"), r.URL.Query().Get("order"), r.URL.Query().Get("q")),
		"pricePerTon": s.ledger.GlobalPrice(),
	})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.Customer(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type customerRequest struct {
	FullName         string  `json:"fullName"`
	MeterNumber      int     `json:"meterNumber"`
	Phone            string  `json:"phone"`
	RegistrationDate string  `json:"registrationDate"`
	NewReading       float64 `json:"newReading"`
	ConfirmRollback  bool    `json:"confirmRollback"`
}

func (s *Server) handleAddCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	c, err := s.ledger.AddCustomer(r.Context(), req.FullName, req.MeterNumber, req.Phone, req.RegistrationDate, req.NewReading, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleEditCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	c, err := s.ledger.EditCustomer(r.Context(), r.PathValue("id"), req.FullName, req.MeterNumber, req.Phone, req.RegistrationDate, req.NewReading, req.ConfirmRollback)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCustomer(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	w.WriteHeader(http.StatusNoContent)
}

type monthRequest struct {
	NewReading      float64 `json:"newReading"`
	ConfirmRollback bool    `json:"confirmRollback"`
}

func (s *Server) handleAddMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	m, err := s.ledger.AddMonth(r.Context(), r.PathValue("id"), req.NewReading, req.ConfirmRollback)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusCreated, m)
}

func monthIndex(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("index"))
}

func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	idx, err := monthIndex(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid month index"})
		return
	}
	if err := s.ledger.DeleteMonth(r.Context(), r.PathValue("id"), idx); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleMonth(w http.ResponseWriter, r *http.Request) {
	idx, err := monthIndex(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid month index"})
		return
	}
	m, err := s.ledger.ToggleMonthStatus(r.Context(), r.PathValue("id"), idx)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, m)
}

type priceRequest struct {
	PricePerTon float64 `json:"pricePerTon"`
}

func (s *Server) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := s.ledger.ChangeGlobalPrice(r.Context(), req.PricePerTon); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, priceRequest{PricePerTon: req.PricePerTon})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.statsCache.Get("stats"); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	stats := s.ledger.Statistics()
	s.statsCache.Set("stats", stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.summaryCache.Get("summary"); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	sum := s.ledger.Summary()
	s.summaryCache.Set("summary", sum)
	writeJSON(w, http.StatusOK, sum)
}
