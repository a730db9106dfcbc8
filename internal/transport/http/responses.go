package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"tally/internal/account"
	"tally/internal/audit"
	"tally/internal/transfer"
	pkgerrors "tally/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a coded error to the JSON error envelope. The
// body carries the generic public message; specifics stay server side.
func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	writeJSON(w, pkgerrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": pkgerrors.PublicMessage(code),
	})
}

type accountResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Number    string    `json:"number"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		OwnerID:   a.OwnerID.String(),
		Number:    a.Number,
		Type:      string(a.Type),
		Balance:   a.Balance.String(),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type transferResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_account_id"`
	ReceiverID  string    `json:"receiver_account_id"`
	Amount      string    `json:"amount"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransferResponses(transfers []*transfer.Transfer) []transferResponse {
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferResponse{
			ID:          t.ID.String(),
			SenderID:    t.SenderID.String(),
			ReceiverID:  t.ReceiverID.String(),
			Amount:      t.Amount.String(),
			Kind:        string(t.Kind),
			Status:      string(t.Status),
			Reason:      t.Reason,
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

type verifyResponse struct {
	Valid           bool    `json:"valid"`
	FirstInvalidSeq *uint64 `json:"first_invalid_seq,omitempty"`
	Checked         int     `json:"checked"`
}

type auditEntryResponse struct {
	Seq         uint64    `json:"seq"`
	Actor       string    `json:"actor"`
	Action      string    `json:"action"`
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	Detail      string    `json:"detail"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	PrevHash    string    `json:"prev_hash"`
	Hash        string    `json:"hash"`
}

func toAuditEntryResponses(entries []*audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			Seq:         e.Seq,
			Actor:       e.Actor,
			Action:      string(e.Action),
			SubjectType: e.SubjectType,
			SubjectID:   e.SubjectID,
			Detail:      e.Detail,
			Severity:    string(e.Severity),
			Timestamp:   e.Timestamp,
			PrevHash:    e.PrevHash,
			Hash:        e.Hash,
		})
	}
	return out
}
