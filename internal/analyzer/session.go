package analyzer

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/logger"
)

// BankSelection restricts analysis to a set of banks. The zero value selects
// every bank, including records without one.
type BankSelection struct {
	active bool
	banks  map[string]struct{}
}

// AllBanks selects every record
func AllBanks() BankSelection {
	return BankSelection{}
}

// OnlyBanks selects records of the named banks. Blank names are ignored. An
// empty list is reported as Empty and leaves the records unfiltered.
func OnlyBanks(banks ...string) BankSelection {
	sel := BankSelection{active: true, banks: make(map[string]struct{}, len(banks))}
	for _, b := range banks {
		if b = strings.TrimSpace(b); b != "" {
			sel.banks[b] = struct{}{}
		}
	}
	return sel
}

// All reports whether the selection is unrestricted
func (s BankSelection) All() bool {
	return !s.active
}

// Empty reports whether the selection was made with no bank names
func (s BankSelection) Empty() bool {
	return s.active && len(s.banks) == 0
}

// Includes reports whether a transaction of the given bank is selected.
// Records without a bank are only kept by an unrestricted or empty selection.
func (s BankSelection) Includes(bank *string) bool {
	if !s.active || len(s.banks) == 0 {
		return true
	}
	if bank == nil {
		return false
	}
	_, ok := s.banks[*bank]
	return ok
}

// Names returns the selected banks sorted, or nil when unrestricted
func (s BankSelection) Names() []string {
	if !s.active {
		return nil
	}
	out := make([]string, 0, len(s.banks))
	for b := range s.banks {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Filter returns the transactions whose bank is selected, in input order.
// An empty selection filters nothing.
func (s BankSelection) Filter(txs []models.NormalizedTransaction) []models.NormalizedTransaction {
	if !s.active || len(s.banks) == 0 {
		return txs
	}
	out := make([]models.NormalizedTransaction, 0, len(txs))
	for _, tx := range txs {
		if s.Includes(tx.Bank) {
			out = append(out, tx)
		}
	}
	return out
}

// Session carries the per-run choices of one analysis: which banks to show,
// the zone dates are read in and where logs go. It is not shared between runs.
type Session struct {
	RunID    uuid.UUID
	Banks    BankSelection
	Location *time.Location
	Logger   logger.Logger
}

// NewSession creates a session with a fresh run ID that selects all banks
// and reads dates as UTC
func NewSession(log logger.Logger) *Session {
	return &Session{
		RunID:    uuid.New(),
		Banks:    AllBanks(),
		Location: time.UTC,
		Logger:   logger.OrDefault(log),
	}
}

func (s *Session) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}
