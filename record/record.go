// Package record defines the domain records the engine indexes: bills and
// transactions. A record is a closed two-variant sum; the variant tag
// determines how canonical text is rendered.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the record variant.
type Kind string

const (
	KindBill        Kind = "bill"
	KindTransaction Kind = "transaction"
)

// ErrUnknownKind indicates a record envelope carried an unrecognized kind tag.
type ErrUnknownKind struct {
	Kind Kind
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown record kind: %q", e.Kind)
}

// Record is the closed union of indexable domain records.
// Only Bill and Transaction implement it.
type Record interface {
	// Kind returns the variant tag.
	Kind() Kind

	// RecordUserID returns the owning user.
	RecordUserID() int64

	// Text renders the canonical searchable text for this record.
	// The builder embeds exactly this string and the retriever reconstructs
	// exactly this string, so the rendering must never drift.
	Text() string

	sealed()
}

// Bill is a recurring or one-off obligation.
type Bill struct {
	ID      int64      `json:"id"`
	UserID  int64      `json:"user_id"`
	Name    string     `json:"name"`
	Amount  float64    `json:"amount"`
	DueDate *time.Time `json:"due_date,omitempty"`
	Status  string     `json:"status"`
}

func (Bill) Kind() Kind             { return KindBill }
func (b Bill) RecordUserID() int64  { return b.UserID }
func (Bill) sealed()                {}

// Transaction is a posted ledger entry.
type Transaction struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Date        *time.Time `json:"date,omitempty"`
}

func (Transaction) Kind() Kind            { return KindTransaction }
func (t Transaction) RecordUserID() int64 { return t.UserID }
func (Transaction) sealed()               {}

// Envelope is the persisted form of a Record: the kind tag plus the variant
// payload. It exists so the metadata artifact is self-describing.
type Envelope struct {
	Kind   Kind            `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// Wrap encodes a Record into its persisted envelope.
func Wrap(r Record) (Envelope, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("record: marshal %s: %w", r.Kind(), err)
	}
	return Envelope{Kind: r.Kind(), Record: payload}, nil
}

// Unwrap decodes an envelope back into its concrete variant.
// An unrecognized kind tag fails with ErrUnknownKind: it indicates artifact
// corruption, not a legitimate third record category.
func Unwrap(e Envelope) (Record, error) {
	switch e.Kind {
	case KindBill:
		var b Bill
		if err := json.Unmarshal(e.Record, &b); err != nil {
			return nil, fmt.Errorf("record: unmarshal bill: %w", err)
		}
		return b, nil
	case KindTransaction:
		var t Transaction
		if err := json.Unmarshal(e.Record, &t); err != nil {
			return nil, fmt.Errorf("record: unmarshal transaction: %w", err)
		}
		return t, nil
	default:
		return nil, &ErrUnknownKind{Kind: e.Kind}
	}
}
