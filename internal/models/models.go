package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxnType is the direction of a transaction relative to the account holder
type TxnType string

const (
	// TxnDebit is money leaving the account
	TxnDebit TxnType = "debit"
	// TxnCredit is money entering the account
	TxnCredit TxnType = "credit"
	// TxnUnknown is used when no direction could be determined
	TxnUnknown TxnType = "unknown"
)

// String returns the string representation of TxnType
func (t TxnType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is one of the three known values
func (t TxnType) IsValid() bool {
	return t == TxnDebit || t == TxnCredit || t == TxnUnknown
}

// ParseTxnType maps an explicit direction label to a TxnType. Labels that are
// not recognised map to TxnUnknown rather than failing.
func ParseTxnType(label string) TxnType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "debit", "dr", "d":
		return TxnDebit
	case "credit", "cr", "c":
		return TxnCredit
	default:
		return TxnUnknown
	}
}

// RawRecord is one row of the input dataset, column name to value. Empty
// cells are stored as nil.
type RawRecord map[string]any

// Value returns the value stored under column and whether it is non-null
func (r RawRecord) Value(column string) (any, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// NormalizedTransaction is the cleaned view of a surviving input row. Values are
// produced once by the normalizer and not modified afterwards.
type NormalizedTransaction struct {
	Line         int             `json:"line"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TxnType         `json:"txn_type"`
	Counterparty string          `json:"counterparty"`
	Bank         *string         `json:"bank,omitempty"`
	Timestamp    *time.Time      `json:"timestamp,omitempty"`
	DateBucket   *time.Time      `json:"date_bucket,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// NewNormalizedTransaction builds a record and derives the date bucket from ts
func NewNormalizedTransaction(line int, amount decimal.Decimal, txType TxnType, counterparty string, bank *string, ts *time.Time, message string) NormalizedTransaction {
	tx := NormalizedTransaction{
		Line:         line,
		Amount:       amount,
		Type:         txType,
		Counterparty: counterparty,
		Message:      message,
	}
	if bank != nil {
		b := *bank
		tx.Bank = &b
	}
	if ts != nil {
		t := *ts
		day := DayOf(t)
		tx.Timestamp = &t
		tx.DateBucket = &day
	}
	return tx
}

// BankLabel returns the bank label and whether the record has one
func (t NormalizedTransaction) BankLabel() (string, bool) {
	if t.Bank == nil {
		return "", false
	}
	return *t.Bank, true
}

// IsDebit returns true if the transaction is a debit
func (t NormalizedTransaction) IsDebit() bool {
	return t.Type == TxnDebit
}

// IsCredit returns true if the transaction is a credit
func (t NormalizedTransaction) IsCredit() bool {
	return t.Type == TxnCredit
}

// String returns a string representation of the transaction
func (t NormalizedTransaction) String() string {
	bank := "-"
	if t.Bank != nil {
		bank = *t.Bank
	}
	when := "-"
	if t.Timestamp != nil {
		when = t.Timestamp.Format(TimestampLayout)
	}
	return fmt.Sprintf("Transaction{Line: %d, Amount: %s, Type: %s, Counterparty: %q, Bank: %s, Time: %s}",
		t.Line, t.Amount.String(), t.Type, t.Counterparty, bank, when)
}

// MarshalJSON renders timestamps in the dataset's own layout and the bucket as a plain date
func (t NormalizedTransaction) MarshalJSON() ([]byte, error) {
	type Alias NormalizedTransaction
	aux := struct {
		Timestamp  string `json:"timestamp,omitempty"`
		DateBucket string `json:"date_bucket,omitempty"`
		Alias
	}{
		Alias: Alias(t),
	}
	if t.Timestamp != nil {
		aux.Timestamp = t.Timestamp.Format(TimestampLayout)
	}
	if t.DateBucket != nil {
		aux.DateBucket = t.DateBucket.Format(DateBucketLayout)
	}
	return json.Marshal(aux)
}

var currencyMarkers = []string{"₹", "INR", "Rs.", "Rs", "$"}

// CoerceAmount converts a raw cell into a decimal amount. It is a best-effort
// coercion: numbers pass through, strings are trimmed and stripped of a
// leading currency marker and thousands separators. Anything else, including
// NaN and infinities, reports false.
func CoerceAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case float32:
		return coerceFloat(float64(n))
	case float64:
		return coerceFloat(n)
	case json.Number:
		return coerceString(n.String())
	case string:
		return coerceString(n)
	default:
		return decimal.Zero, false
	}
}

func coerceFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func coerceString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	for _, marker := range currencyMarkers {
		if strings.HasPrefix(s, marker) {
			s = strings.TrimSpace(strings.TrimPrefix(s, marker))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
