package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/grid"
)

// Mode selects which result variant an extraction produces.
type Mode string

const (
	Reconciliation Mode = "reconciliation"
	General        Mode = "general"
)

// ErrUnknownMode is returned for a mode other than reconciliation or general.
var ErrUnknownMode = errors.New("unknown extraction mode")

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Reconciliation:
		return Reconciliation, nil
	case General:
		return General, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// TxnType is the direction of a transaction.
type TxnType string

const (
	Deposit    TxnType = "Deposit"
	Withdrawal TxnType = "Withdrawal"
)

// TypeOf returns Withdrawal for a negative amount, Deposit otherwise.
func TypeOf(amount decimal.Decimal) TxnType {
	if amount.IsNegative() {
		return Withdrawal
	}
	return Deposit
}

// Field is one header/value pair of a KeyedRow.
type Field struct {
	Key   string
	Value grid.Cell
}

// KeyedRow is a data row keyed by its sheet header labels, in column order.
// Absent cells are not present.
type KeyedRow []Field

// Keys returns the header labels in column order.
func (r KeyedRow) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the cell values in column order.
func (r KeyedRow) Values() []grid.Cell {
	vals := make([]grid.Cell, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// MarshalJSON encodes the row as an object, preserving column order.
func (r KeyedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v []byte
		switch f.Value.Kind {
		case grid.Number:
			v = []byte(f.Value.Text())
		case grid.Absent:
			v = []byte("null")
		default:
			v, err = json.Marshal(f.Value.Text())
			if err != nil {
				return nil, err
			}
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Transaction is a normalized statement line.
type Transaction struct {
	Date        string
	Description string
	Amount      decimal.Decimal // negative = withdrawal
	Type        TxnType
	Original    KeyedRow

	dateDefaulted bool
}

// NewTransaction builds a Transaction, deriving Type from the amount sign.
// dateDefaulted marks a row whose date was not found in the sheet.
func NewTransaction(date, description string, amount decimal.Decimal, original KeyedRow, dateDefaulted bool) Transaction {
	return Transaction{
		Date:          date,
		Description:   description,
		Amount:        amount,
		Type:          TypeOf(amount),
		Original:      original,
		dateDefaulted: dateDefaulted,
	}
}

// DateDefaulted reports whether Date was filled in with today's date.
func (t Transaction) DateDefaulted() bool { return t.dateDefaulted }

type transactionJSON struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Type        TxnType     `json:"type"`
	Original    KeyedRow    `json:"original,omitempty"`
}

// MarshalJSON encodes Amount as a JSON number rather than a string.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Date:        t.Date,
		Description: t.Description,
		Amount:      json.Number(t.Amount.String()),
		Type:        t.Type,
		Original:    t.Original,
	})
}
