package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Severity routes entries to downstream alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Action tags the kind of event an entry records.
type Action string

const (
	ActionInternalTransfer Action = "INTERNAL_TRANSFER"
	ActionExternalTransfer Action = "EXTERNAL_TRANSFER"
	ActionBlockedStatus    Action = "TRANSFER_BLOCKED_ACCOUNT_STATUS"
	ActionInsufficient     Action = "INSUFFICIENT_FUNDS"
	ActionSuspicious       Action = "SUSPICIOUS_TRANSACTION"
	ActionStatusChanged    Action = "ACCOUNT_STATUS_CHANGED"
)

// SeedHash is the PrevHash of entry 0. Fixed so the chain is verifiable
// from nothing.
const SeedHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one record in the hash chain. Seq is dense from 0; Hash is
// computed once at append time over the entry's own fields plus the
// previous entry's hash, and never recomputed or altered afterwards.
type Entry struct {
	Seq         uint64
	Actor       string
	Action      Action
	SubjectType string
	SubjectID   string
	Detail      string
	Severity    Severity
	Timestamp   time.Time
	PrevHash    string
	Hash        string
}

// ComputeHash derives the chain hash for this entry given its
// predecessor's hash. The hashed fields are exactly those the chain
// invariant covers: sequence, actor, action, detail, previous hash.
func (e *Entry) ComputeHash(prevHash string) string {
	payload := fmt.Sprintf("%d:%s:%s:%s:%s", e.Seq, e.Actor, e.Action, e.Detail, prevHash)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
