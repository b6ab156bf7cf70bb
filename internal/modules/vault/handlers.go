package vault

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/modules/policy"
	"github.com/trivault/trivault/internal/modules/strategy"
)

// Handler handles vault HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new vault handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "vault").Logger(),
	}
}

type depositRequest struct {
	Holder string `json:"holder"`
	Amount int64  `json:"amount"`
}

// HandleDeposit processes POST /deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Holder) == "" {
		h.writeError(w, http.StatusBadRequest, "Holder is required")
		return
	}

	if err := h.service.Deposit(req.Holder, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deposited",
		"holder": req.Holder,
		"amount": req.Amount,
	})
}

// HandleWithdraw processes POST /withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Holder) == "" {
		h.writeError(w, http.StatusBadRequest, "Holder is required")
		return
	}

	if err := h.service.Withdraw(req.Holder, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "withdrawn",
		"holder": req.Holder,
		"amount": req.Amount,
	})
}

type policyRequest struct {
	Options int `json:"p_options"`
	LP      int `json:"p_lp"`
	Staking int `json:"p_staking"`
}

func (req policyRequest) toPolicy() policy.Policy {
	return policy.Policy{Options: req.Options, LP: req.LP, Staking: req.Staking}
}

// HandleSetPolicy processes PUT /policy/{holder}
func (h *Handler) HandleSetPolicy(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetPolicy(holder, req.toPolicy()); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "policy_set",
		"holder": holder,
	})
}

// HandleGetPolicy processes GET /policy/{holder}
func (h *Handler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	pol, stored, err := h.service.GetPolicy(holder)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holder":    holder,
		"p_options": pol.Options,
		"p_lp":      pol.LP,
		"p_staking": pol.Staking,
		"stored":    stored,
	})
}

// HandleRebalance processes POST /rebalance/{holder}. An optional policy
// body makes it a rebalance-with-new-policy.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	var req policyRequest
	hasBody := false
	switch err := json.NewDecoder(r.Body).Decode(&req); {
	case err == nil:
		hasBody = true
	case errors.Is(err, io.EOF):
		// No body: plain rebalance against the stored policy.
	default:
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var err error
	if hasBody {
		err = h.service.RebalanceWithNewPolicy(holder, req.toPolicy())
	} else {
		err = h.service.Rebalance(holder)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "rebalanced",
		"holder":     holder,
		"new_policy": hasBody,
	})
}

type partialRebalanceRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// HandlePartialRebalance processes POST /rebalance/{holder}/partial
func (h *Handler) HandlePartialRebalance(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	var req partialRebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RebalancePartial(holder, req.From, req.To, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "rebalanced",
		"holder": holder,
		"from":   req.From,
		"to":     req.To,
		"amount": req.Amount,
	})
}

// HandleGetPosition processes GET /position/{holder}
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	pos, err := h.service.GetPosition(holder)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, pos)
}

// HandleGetValue processes GET /value
func (h *Handler) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.Breakdown()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	names := strategy.SlotNames()
	perSlot := make(map[string]int64, 3)
	for i, n := range names {
		perSlot[n] = breakdown[i]
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_value": breakdown[0] + breakdown[1] + breakdown[2],
		"per_slot":    perSlot,
	})
}

// HandleGetOperations processes GET /operations/{holder}
func (h *Handler) HandleGetOperations(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ops, err := h.service.Operations(holder, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ops == nil {
		ops = []Operation{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holder":     holder,
		"operations": ops,
	})
}

// writeDomainError maps domain errors onto HTTP statuses
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var collab *domain.CollaboratorError

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPolicy):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNoPosition):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnknownStrategy):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrReentrant):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &collab):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg("Vault operation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
