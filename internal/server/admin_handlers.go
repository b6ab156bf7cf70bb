package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/modules/assets"
	"github.com/trivault/trivault/internal/modules/strategy"
	"github.com/trivault/trivault/internal/modules/vault"
)

// AdminHandlers covers the operator surface: asset issuance, allowances and
// strategy slot rebinding
type AdminHandlers struct {
	ledger *assets.Ledger
	vault  *vault.Service
	log    zerolog.Logger
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(ledger *assets.Ledger, vaultService *vault.Service, log zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		ledger: ledger,
		vault:  vaultService,
		log:    log.With().Str("handler", "admin").Logger(),
	}
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// HandleMint processes POST /assets/mint
func (h *AdminHandlers) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Account) == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	if err := h.ledger.Mint(req.Account, req.Amount); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "minted",
		"account": req.Account,
		"amount":  req.Amount,
	})
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

// HandleApprove processes POST /assets/approve. Holders use it to authorize
// the vault account before depositing.
func (h *AdminHandlers) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Owner) == "" || strings.TrimSpace(req.Spender) == "" {
		h.writeError(w, http.StatusBadRequest, "Owner and spender are required")
		return
	}

	if err := h.ledger.Approve(req.Owner, req.Spender, req.Amount); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "approved",
		"owner":   req.Owner,
		"spender": req.Spender,
		"amount":  req.Amount,
	})
}

// HandleBalance processes GET /assets/balance/{account}
func (h *AdminHandlers) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	balance, err := h.ledger.BalanceOf(account)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"asset":   h.ledger.Asset(),
		"balance": balance,
	})
}

// HandleListStrategies processes GET /strategies
func (h *AdminHandlers) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.vault.Breakdown()
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	names := strategy.SlotNames()
	slots := make([]map[string]interface{}, 0, 3)
	for i, name := range names {
		slots = append(slots, map[string]interface{}{
			"slot":  name,
			"value": breakdown[i],
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
	})
}

type rebindRequest struct {
	YieldBps int `json:"yield_bps"`
}

// HandleRebindStrategy processes POST /strategies/{slot}/rebind, replacing
// the slot's simulator with one running at the given yield rate
func (h *AdminHandlers) HandleRebindStrategy(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")

	var req rebindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.YieldBps < 0 {
		h.writeError(w, http.StatusBadRequest, "Yield must be non-negative")
		return
	}

	sim := strategy.NewSimulator(strategy.SimulatorConfig{
		Kind:         strategy.Kind(slot),
		VaultAccount: assets.VaultAccount,
		YieldBps:     req.YieldBps,
		Ledger:       h.ledger,
	}, h.log)

	var options, lp, staking strategy.Capability
	switch slot {
	case strategy.SlotOptions:
		options = sim
	case strategy.SlotLP:
		lp = sim
	case strategy.SlotStaking:
		staking = sim
	default:
		h.writeError(w, http.StatusNotFound, "Unknown strategy slot")
		return
	}

	if err := h.vault.RebindStrategies(options, lp, staking); err != nil {
		if errors.Is(err, domain.ErrReentrant) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "rebound",
		"slot":      slot,
		"strategy":  sim.Name(),
		"yield_bps": req.YieldBps,
	})
}

func (h *AdminHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *AdminHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
