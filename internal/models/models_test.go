package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTxnType(t *testing.T) {
	tests := []struct {
		label    string
		expected TxnType
	}{
		{"debit", TxnDebit},
		{"DEBIT", TxnDebit},
		{" Dr ", TxnDebit},
		{"d", TxnDebit},
		{"credit", TxnCredit},
		{"CR", TxnCredit},
		{"c", TxnCredit},
		{"refund", TxnUnknown},
		{"", TxnUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := ParseTxnType(tt.label); got != tt.expected {
				t.Errorf("ParseTxnType(%q) = %v, want %v", tt.label, got, tt.expected)
			}
		})
	}
}

func TestTxnType_IsValid(t *testing.T) {
	for _, tx := range []TxnType{TxnDebit, TxnCredit, TxnUnknown} {
		if !tx.IsValid() {
			t.Errorf("%s should be valid", tx)
		}
	}
	if TxnType("DEBIT").IsValid() {
		t.Error("upper-case type should not be valid")
	}
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
		ok       bool
	}{
		{"int", 100, "100", true},
		{"int64", int64(-25), "-25", true},
		{"float", 12.5, "12.5", true},
		{"plain string", "250.75", "250.75", true},
		{"padded string", "  42 ", "42", true},
		{"thousands separator", "1,200.50", "1200.5", true},
		{"rupee prefix", "₹ 499", "499", true},
		{"rs prefix", "Rs.150", "150", true},
		{"dollar prefix", "$10", "10", true},
		{"exponent", "1e3", "1000", true},
		{"decimal value", decimal.NewFromInt(7), "7", true},
		{"word", "abc", "", false},
		{"blank", "   ", "", false},
		{"nil", nil, "", false},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(1), "", false},
		{"bool", true, "", false},
		{"nan string", "NaN", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceAmount(tt.input)
			if ok != tt.ok {
				t.Fatalf("CoerceAmount(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			want := decimal.RequireFromString(tt.expected)
			if !got.Equal(want) {
				t.Errorf("CoerceAmount(%v) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestRawRecord_Value(t *testing.T) {
	r := RawRecord{"amount": "10", "bank": nil}

	if v, ok := r.Value("amount"); !ok || v != "10" {
		t.Errorf("Value(amount) = %v, %v", v, ok)
	}
	if _, ok := r.Value("bank"); ok {
		t.Error("nil cell should report absent")
	}
	if _, ok := r.Value("missing"); ok {
		t.Error("missing column should report absent")
	}
}

func TestNewNormalizedTransaction(t *testing.T) {
	bank := "HDFC"
	ts := time.Date(2024, 3, 9, 18, 45, 10, 0, time.UTC)

	tx := NewNormalizedTransaction(4, decimal.NewFromInt(100), TxnDebit, "ZOMATO", &bank, &ts, "spent")

	if tx.DateBucket == nil {
		t.Fatal("date bucket should be derived from timestamp")
	}
	if want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC); !tx.DateBucket.Equal(want) {
		t.Errorf("DateBucket = %v, want %v", tx.DateBucket, want)
	}

	bank = "changed"
	if label, ok := tx.BankLabel(); !ok || label != "HDFC" {
		t.Errorf("BankLabel() = %q, %v; record must not alias caller's bank", label, ok)
	}
	if !tx.IsDebit() || tx.IsCredit() {
		t.Error("expected a debit record")
	}

	noTime := NewNormalizedTransaction(5, decimal.NewFromInt(1), TxnUnknown, "", nil, nil, "")
	if noTime.Timestamp != nil || noTime.DateBucket != nil {
		t.Error("timestamp and date bucket must both be absent")
	}
	if _, ok := noTime.BankLabel(); ok {
		t.Error("nil bank should be unbucketed")
	}
}

func TestNormalizedTransaction_MarshalJSON(t *testing.T) {
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	tx := NewNormalizedTransaction(2, decimal.RequireFromString("99.90"), TxnCredit, "RAHUL", nil, &ts, "")

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	for _, want := range []string{`"timestamp":"2024-01-05 10:00:00"`, `"date_bucket":"2024-01-05"`, `"txn_type":"credit"`, `"amount":"99.9"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON %s missing %s", out, want)
		}
	}
	if strings.Contains(out, `"bank"`) {
		t.Errorf("JSON %s should omit absent bank", out)
	}
}
