// Package httptransport is the thin HTTP layer over the transfer
// engine. Handlers decode, delegate, and encode; every decision about
// money lives below this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tally/internal/account"
	"tally/internal/transfer"
	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
	"tally/pkg/requestcontext"
)

// HealthCheck reports readiness of one dependency.
type HealthCheck struct {
	Name  string
	Check func() error
}

// Handler holds the services the routes delegate to.
type Handler struct {
	transfers *transfer.Service
	accounts  *account.Service
	logger    *slog.Logger
	health    []HealthCheck
}

func NewHandler(transfers *transfer.Service, accounts *account.Service, logger *slog.Logger, health ...HealthCheck) *Handler {
	return &Handler{transfers: transfers, accounts: accounts, logger: logger, health: health}
}

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return
	}

	req, err := decodeTransferRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.transfers.Execute(r.Context(), caller, req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "transfer failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == transfer.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return
	}

	accountID, err := domain.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid account id"))
		return
	}

	filter, err := decodeHistoryFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	transfers, err := h.transfers.History(r.Context(), caller, accountID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": toTransferResponses(transfers)})
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return
	}

	accountID, err := domain.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid account id"))
		return
	}

	a, err := h.accounts.Get(r.Context(), caller, accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) handleChangeAccountStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return
	}

	accountID, err := domain.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid account id"))
		return
	}

	body, err := decodeStatusChangeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ChangeStatus(r.Context(), caller, accountID, account.Status(body.Status), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.transfers.VerifyChain(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:           report.Valid,
		FirstInvalidSeq: report.FirstInvalidSeq,
		Checked:         report.Checked,
	})
}

func (h *Handler) handleListAuditEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeHistoryFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.transfers.RecentAudit(r.Context(), filter.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toAuditEntryResponses(entries)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(h.health))
	healthy := true
	for _, hc := range h.health {
		if err := hc.Check(); err != nil {
			components[hc.Name] = err.Error()
			healthy = false
			continue
		}
		components[hc.Name] = "ok"
	}

	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	if len(components) > 0 {
		body["components"] = components
	}
	writeJSON(w, status, body)
}
