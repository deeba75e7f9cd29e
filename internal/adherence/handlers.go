package adherence

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fdg312/coach-nutrition/internal/reconcile"
	"github.com/fdg312/coach-nutrition/internal/userctx"
	"go.uber.org/zap"
)

// AnonymousClientID is used for requests without an authenticated user,
// which only reach the handlers when auth is not required.
const AnonymousClientID = "local"

// Handler handles HTTP requests for plan tracking.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new tracking handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the tracking routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/nutrition/day", h.HandleGetDay)
	mux.HandleFunc("GET /v1/nutrition/today", h.HandleGetToday)
	mux.HandleFunc("POST /v1/nutrition/checks/toggle", h.HandleToggle)
	mux.HandleFunc("GET /v1/nutrition/meals", h.HandleSearchMeals)
	mux.HandleFunc("POST /v1/nutrition/swaps", h.HandleSelectSwap)
	mux.HandleFunc("DELETE /v1/nutrition/swaps", h.HandleCancelSwap)
	mux.HandleFunc("POST /v1/nutrition/swaps/commit", h.HandleCommitSwaps)
	mux.HandleFunc("POST /v1/nutrition/progress/save", h.HandleSave)
}

// HandleGetDay handles GET /v1/nutrition/day?day_index=
func (h *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.URL.Query().Get("day_index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "day_index must be an integer")
		return
	}

	view, err := h.service.DayView(r.Context(), clientID(r), day)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetToday handles GET /v1/nutrition/today
func (h *Handler) HandleGetToday(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Today(r.Context(), clientID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleToggle handles POST /v1/nutrition/checks/toggle
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.service.Toggle(r.Context(), clientID(r), req.Key())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSearchMeals handles GET /v1/nutrition/meals?query=&category=&limit=
func (h *Handler) HandleSearchMeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	meals, err := h.service.SearchMeals(r.Context(), q.Get("query"), q.Get("category"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MealSearchResponse{Meals: meals})
}

// HandleSelectSwap handles POST /v1/nutrition/swaps
func (h *Handler) HandleSelectSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.service.SelectSwap(r.Context(), clientID(r), req.Key(), req.MealID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCancelSwap handles DELETE /v1/nutrition/swaps?day_index=&slot_index=
func (h *Handler) HandleCancelSwap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, dayErr := strconv.Atoi(q.Get("day_index"))
	slot, slotErr := strconv.Atoi(q.Get("slot_index"))
	if dayErr != nil || slotErr != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "day_index and slot_index must be integers")
		return
	}
	req := SlotRequest{DayIndex: &day, SlotIndex: &slot}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.service.CancelSwap(r.Context(), clientID(r), req.Key())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCommitSwaps handles POST /v1/nutrition/swaps/commit
func (h *Handler) HandleCommitSwaps(w http.ResponseWriter, r *http.Request) {
	applied, err := h.service.CommitSwaps(r.Context(), clientID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{Applied: applied})
}

// HandleSave handles POST /v1/nutrition/progress/save
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Save(r.Context(), clientID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func clientID(r *http.Request) string {
	return userctx.ClientIDOr(r.Context(), AnonymousClientID)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var persistErr *reconcile.PersistError
	switch {
	case errors.Is(err, ErrInvalidDay), errors.Is(err, ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan_not_found", "No active nutrition plan")
	case errors.Is(err, ErrMealNotFound):
		writeError(w, http.StatusNotFound, "meal_not_found", "Meal not found")
	case errors.As(err, &persistErr):
		writeError(w, http.StatusServiceUnavailable, "persist_failed", "Failed to save, changes are kept locally")
	default:
		h.logger.Error("nutrition request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
