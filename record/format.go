package record

import (
	"fmt"
	"time"
)

// dateLayout renders dates as ISO-8601 calendar dates.
const dateLayout = "2006-01-02"

// unknownDate is the literal used when a record has no date.
const unknownDate = "unknown"

// Text renders the canonical searchable text for a bill:
//
//	Bill: {name}. Amount: ${amount}. Due date: {due_date|unknown}. Status: {status}.
func (b Bill) Text() string {
	return fmt.Sprintf("Bill: %s. Amount: $%.2f. Due date: %s. Status: %s.",
		b.Name, b.Amount, formatDate(b.DueDate), b.Status)
}

// Text renders the canonical searchable text for a transaction:
//
//	Transaction: {description}. Amount: ${amount}. Date: {date|unknown}.
func (t Transaction) Text() string {
	return fmt.Sprintf("Transaction: %s. Amount: $%.2f. Date: %s.",
		t.Description, t.Amount, formatDate(t.Date))
}

// ReconstructText renders display text for a record returned from the
// metadata store. It must match the builder's embedded text exactly.
//
// The fallback for a nil or foreign Record implementation mirrors the
// defensive default of the original system. It is unreachable through a
// successful load: Unwrap rejects unknown kinds at decode time.
func ReconstructText(r Record) string {
	switch v := r.(type) {
	case Bill:
		return v.Text()
	case Transaction:
		return v.Text()
	default:
		return "Unknown item"
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return unknownDate
	}
	return t.Format(dateLayout)
}

// Date is a convenience constructor for pointer date fields.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
