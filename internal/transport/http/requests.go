package httptransport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"

	"tally/internal/transfer"
	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
)

const accountNumberLength = 12

// transferRequest is the POST /api/transfers payload. Amounts travel as
// strings; float money does not enter the system.
type transferRequest struct {
	SenderAccountID       string `json:"sender_account_id"`
	ReceiverAccountID     string `json:"receiver_account_id,omitempty"`
	ReceiverAccountNumber string `json:"receiver_account_number,omitempty"`
	Amount                string `json:"amount"`
	Description           string `json:"description,omitempty"`
}

func decodeTransferRequest(r *http.Request) (transfer.Request, error) {
	var body transferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "malformed JSON body")
	}

	senderID, err := domain.ParseAccountID(body.SenderAccountID)
	if err != nil {
		return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid sender_account_id")
	}

	req := transfer.Request{
		SenderID:       senderID,
		Description:    body.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}

	if (body.ReceiverAccountID == "") == (body.ReceiverAccountNumber == "") {
		return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "exactly one of receiver_account_id or receiver_account_number is required")
	}
	if body.ReceiverAccountID != "" {
		receiverID, err := domain.ParseAccountID(body.ReceiverAccountID)
		if err != nil {
			return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid receiver_account_id")
		}
		req.ReceiverID = receiverID
	} else {
		if len(body.ReceiverAccountNumber) != accountNumberLength || !govalidator.IsNumeric(body.ReceiverAccountNumber) {
			return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "receiver_account_number must be 12 digits")
		}
		req.ReceiverNumber = body.ReceiverAccountNumber
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return transfer.Request{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid amount")
	}
	req.Amount = amount

	return req, nil
}

// statusChangeRequest is the PATCH /api/accounts/{accountID}/status
// payload.
type statusChangeRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func decodeStatusChangeRequest(r *http.Request) (statusChangeRequest, error) {
	var body statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return statusChangeRequest{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "malformed JSON body")
	}
	if body.Status == "" {
		return statusChangeRequest{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "status is required")
	}
	return body, nil
}

// decodeHistoryFilter parses history query parameters. Unknown
// parameters are ignored; malformed known ones are rejected.
func decodeHistoryFilter(values url.Values) (transfer.Filter, error) {
	var f transfer.Filter

	if v := values.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "from must be RFC 3339")
		}
		f.From = &t
	}
	if v := values.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "to must be RFC 3339")
		}
		f.To = &t
	}
	if v := values.Get("kind"); v != "" {
		if v != string(transfer.KindInternal) && v != string(transfer.KindExternal) {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "kind must be internal or external")
		}
		f.Kind = transfer.Kind(v)
	}
	if v := values.Get("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid min_amount")
		}
		f.MinAmount = &d
	}
	if v := values.Get("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid max_amount")
		}
		f.MaxAmount = &d
	}
	if v := values.Get("limit"); v != "" {
		if !govalidator.IsNumeric(v) {
			return f, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid limit")
		}
		n, _ := govalidator.ToInt(v)
		f.Limit = int(n)
	}
	return f, nil
}
