// Package aggregator reduces normalized transactions into the grouped totals
// shown in reports: per bank, per counterparty and per calendar day, plus the
// two grand totals.
//
// Every view is a grouped sum, so the result does not depend on record order.
// Groups are collected in a map keyed by the group label and then converted to
// a slice sorted for presentation:
//   - banks by name, the unbucketed group last
//   - counterparties by total descending, ties by name
//   - days ascending
//
// An empty input subset yields an empty view, never an error.
package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/logger"
)

// UnbucketedLabel is the display name of the group of records without a bank
const UnbucketedLabel = "(unbucketed)"

// BankTotals holds the direction totals of one bank
type BankTotals struct {
	Bank       string          `json:"bank" yaml:"bank"`
	Unbucketed bool            `json:"unbucketed,omitempty" yaml:"unbucketed,omitempty"`
	Debit      decimal.Decimal `json:"total_debited" yaml:"total_debited"`
	Credit     decimal.Decimal `json:"total_credited" yaml:"total_credited"`
	Count      int             `json:"count" yaml:"count"`
}

// GroupTotal is the sum of one counterparty within one direction
type GroupTotal struct {
	Key   string          `json:"name" yaml:"name"`
	Total decimal.Decimal `json:"total" yaml:"total"`
	Count int             `json:"count" yaml:"count"`
}

// DayTotal is the sum of one calendar day within one direction
type DayTotal struct {
	Date  time.Time       `json:"date" yaml:"date"`
	Total decimal.Decimal `json:"total" yaml:"total"`
	Count int             `json:"count" yaml:"count"`
}

// Day returns the bucket key as YYYY-MM-DD
func (d DayTotal) Day() string {
	return d.Date.Format(models.DateBucketLayout)
}

// Summary is the complete aggregation of one transaction set
type Summary struct {
	TransactionCount int             `json:"transaction_count" yaml:"transaction_count"`
	TotalDebited     decimal.Decimal `json:"total_debited" yaml:"total_debited"`
	TotalCredited    decimal.Decimal `json:"total_credited" yaml:"total_credited"`

	ByBank               []BankTotals `json:"by_bank" yaml:"by_bank"`
	DebitByCounterparty  []GroupTotal `json:"debit_by_counterparty" yaml:"debit_by_counterparty"`
	CreditByCounterparty []GroupTotal `json:"credit_by_counterparty" yaml:"credit_by_counterparty"`
	DebitByDate          []DayTotal   `json:"debit_by_date" yaml:"debit_by_date"`
	CreditByDate         []DayTotal   `json:"credit_by_date" yaml:"credit_by_date"`
}

// Bank looks up the totals of a bank by label
func (s *Summary) Bank(label string) (BankTotals, bool) {
	for _, b := range s.ByBank {
		if !b.Unbucketed && b.Bank == label {
			return b, true
		}
	}
	return BankTotals{}, false
}

// Unbucketed returns the totals of records without a bank
func (s *Summary) Unbucketed() (BankTotals, bool) {
	for _, b := range s.ByBank {
		if b.Unbucketed {
			return b, true
		}
	}
	return BankTotals{}, false
}

// HasDates reports whether any dated record exists in either direction
func (s *Summary) HasDates() bool {
	return len(s.DebitByDate) > 0 || len(s.CreditByDate) > 0
}

// Engine computes aggregation views. It holds no state between calls.
type Engine struct {
	logger logger.Logger
}

// NewEngine creates an Engine; a nil logger uses the default
func NewEngine(l logger.Logger) *Engine {
	return &Engine{logger: logger.OrDefault(l).WithComponent("aggregator")}
}

// Summarize computes every view over txs
func (e *Engine) Summarize(txs []models.NormalizedTransaction) *Summary {
	debit, credit := e.GrandTotals(txs)
	s := &Summary{
		TransactionCount:     len(txs),
		TotalDebited:         debit,
		TotalCredited:        credit,
		ByBank:               e.ByBank(txs),
		DebitByCounterparty:  e.ByCounterparty(txs, models.TxnDebit),
		CreditByCounterparty: e.ByCounterparty(txs, models.TxnCredit),
		DebitByDate:          e.ByDate(txs, models.TxnDebit),
		CreditByDate:         e.ByDate(txs, models.TxnCredit),
	}

	e.logger.WithFields(logger.Fields{
		"transactions":   s.TransactionCount,
		"banks":          len(s.ByBank),
		"total_debited":  s.TotalDebited.String(),
		"total_credited": s.TotalCredited.String(),
	}).Debug("Aggregated transactions")
	return s
}

// GrandTotals sums debits and credits across txs. Unknown records count in neither.
func (e *Engine) GrandTotals(txs []models.NormalizedTransaction) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case models.TxnDebit:
			debit = debit.Add(tx.Amount)
		case models.TxnCredit:
			credit = credit.Add(tx.Amount)
		}
	}
	return debit, credit
}

// ByBank groups txs by bank. Records without a bank form their own group.
// A bank with no records in a direction reports zero for it.
func (e *Engine) ByBank(txs []models.NormalizedTransaction) []BankTotals {
	groups := make(map[string]*BankTotals)
	var unbucketed *BankTotals

	for _, tx := range txs {
		var entry *BankTotals
		if label, ok := tx.BankLabel(); ok {
			entry = groups[label]
			if entry == nil {
				entry = &BankTotals{Bank: label, Debit: decimal.Zero, Credit: decimal.Zero}
				groups[label] = entry
			}
		} else {
			if unbucketed == nil {
				unbucketed = &BankTotals{Bank: UnbucketedLabel, Unbucketed: true, Debit: decimal.Zero, Credit: decimal.Zero}
			}
			entry = unbucketed
		}

		entry.Count++
		switch tx.Type {
		case models.TxnDebit:
			entry.Debit = entry.Debit.Add(tx.Amount)
		case models.TxnCredit:
			entry.Credit = entry.Credit.Add(tx.Amount)
		}
	}

	out := make([]BankTotals, 0, len(groups)+1)
	for _, entry := range groups {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Bank < out[j].Bank
	})
	if unbucketed != nil {
		out = append(out, *unbucketed)
	}
	return out
}

// ByCounterparty sums txs of one direction per counterparty, largest first
func (e *Engine) ByCounterparty(txs []models.NormalizedTransaction, txType models.TxnType) []GroupTotal {
	groups := make(map[string]*GroupTotal)

	for _, tx := range txs {
		if tx.Type != txType {
			continue
		}
		entry := groups[tx.Counterparty]
		if entry == nil {
			entry = &GroupTotal{Key: tx.Counterparty, Total: decimal.Zero}
			groups[tx.Counterparty] = entry
		}
		entry.Total = entry.Total.Add(tx.Amount)
		entry.Count++
	}

	out := make([]GroupTotal, 0, len(groups))
	for _, entry := range groups {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ByDate sums dated txs of one direction per calendar day, oldest first
func (e *Engine) ByDate(txs []models.NormalizedTransaction, txType models.TxnType) []DayTotal {
	groups := make(map[string]*DayTotal)

	for _, tx := range txs {
		if tx.Type != txType || tx.DateBucket == nil {
			continue
		}
		key := tx.DateBucket.Format(models.DateBucketLayout)
		entry := groups[key]
		if entry == nil {
			entry = &DayTotal{Date: *tx.DateBucket, Total: decimal.Zero}
			groups[key] = entry
		}
		entry.Total = entry.Total.Add(tx.Amount)
		entry.Count++
	}

	out := make([]DayTotal, 0, len(groups))
	for _, entry := range groups {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Banks returns the distinct bank labels in txs, sorted
func Banks(txs []models.NormalizedTransaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tx := range txs {
		if label, ok := tx.BankLabel(); ok && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}
