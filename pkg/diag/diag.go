// Package diag tags matching failures with a kind so callers can tell a
// skippable record apart from a dead store.
package diag

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindMalformedRecord  Kind = "MalformedRecord"  // transaction missing required quantity/fee data
	KindUnmatchedClose   Kind = "UnmatchedClose"   // closing transaction with no open trade for its symbol
	KindStoreUnavailable Kind = "StoreUnavailable" // store failure or timeout, fatal for the run
	KindAlreadyApplied   Kind = "AlreadyApplied"   // transaction id already referenced by a trade
	KindDegenerateTrade  Kind = "DegenerateTrade"  // closed trade with zero opening price, percent undefined
)

// Event is a non-fatal diagnostic recorded during a batch run
type Event struct {
	Kind    Kind   `json:"kind"`
	TxID    int64  `json:"txID,omitempty"`
	TradeID int64  `json:"tradeID,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message,omitempty"`
	Time    int64  `json:"time"` // epoch millis
}

func NewEvent(kind Kind, txID int64, symbol string, message string) Event {
	return Event{
		Kind:    kind,
		TxID:    txID,
		Symbol:  symbol,
		Message: message,
		Time:    time.Now().UnixMilli(),
	}
}

func (e Event) String() string {
	return fmt.Sprintf("%s tx:%d symbol:%s %s", e.Kind, e.TxID, e.Symbol, e.Message)
}

// Error wraps an underlying error with a diagnostic kind
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with the given kind
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Ef wraps a formatted message with the given kind
func Ef(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err, empty when untagged
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
