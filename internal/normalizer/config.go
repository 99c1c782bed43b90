package normalizer

import (
	"fmt"
	"strings"

	"sms-spend-analyzer/pkg/errors"
)

// Field identifies a logical dataset field independently of its column name
type Field string

const (
	FieldAmount       Field = "amount"
	FieldMessage      Field = "message"
	FieldDirection    Field = "direction"
	FieldCounterparty Field = "counterparty"
	FieldSender       Field = "sender"
	FieldBank         Field = "bank"
	FieldDate         Field = "date"
)

// AllFields lists every recognised field, required ones first
var AllFields = []Field{
	FieldAmount, FieldMessage, FieldDirection, FieldCounterparty, FieldSender, FieldBank, FieldDate,
}

// ColumnSpec names the column that carries a field and the aliases accepted
// in its place. Header matching is case-insensitive.
type ColumnSpec struct {
	Column  string   `json:"column" mapstructure:"column"`
	Aliases []string `json:"aliases,omitempty" mapstructure:"aliases"`
}

// candidates returns the column followed by its aliases
func (c ColumnSpec) candidates() []string {
	out := make([]string, 0, len(c.Aliases)+1)
	if strings.TrimSpace(c.Column) != "" {
		out = append(out, c.Column)
	}
	for _, a := range c.Aliases {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}

// FieldChain is an ordered fallback list. The first field in the chain that
// carries a non-null value for a record wins.
type FieldChain []Field

// DatasetConfig describes how a tabular export maps onto transaction fields.
// It is resolved against a header once per dataset (see Resolve).
type DatasetConfig struct {
	Amount       ColumnSpec `json:"amount" mapstructure:"amount"`
	Message      ColumnSpec `json:"message" mapstructure:"message"`
	Direction    ColumnSpec `json:"direction" mapstructure:"direction"`
	Counterparty ColumnSpec `json:"counterparty" mapstructure:"counterparty"`
	Sender       ColumnSpec `json:"sender" mapstructure:"sender"`
	Bank         ColumnSpec `json:"bank" mapstructure:"bank"`
	Date         ColumnSpec `json:"date" mapstructure:"date"`

	// CounterpartyChain is the fallback order used to name the other party.
	CounterpartyChain FieldChain `json:"counterparty_chain" mapstructure:"counterparty_chain"`

	// IgnoreColumns are dropped from the header before resolution (index
	// columns written by dataframe exports).
	IgnoreColumns []string `json:"ignore_columns,omitempty" mapstructure:"ignore_columns"`
}

// DefaultDatasetConfig returns the column layout of a cleaned transactions export
func DefaultDatasetConfig() *DatasetConfig {
	return &DatasetConfig{
		Amount:            ColumnSpec{Column: "amount", Aliases: []string{"amt", "value"}},
		Message:           ColumnSpec{Column: "raw_message", Aliases: []string{"message", "body", "sms"}},
		Direction:         ColumnSpec{Column: "txn_type", Aliases: []string{"type", "transaction_type"}},
		Counterparty:      ColumnSpec{Column: "merchant", Aliases: []string{"counterparty", "payee"}},
		Sender:            ColumnSpec{Column: "sender", Aliases: []string{"address"}},
		Bank:              ColumnSpec{Column: "Bank", Aliases: []string{"bank", "account"}},
		Date:              ColumnSpec{Column: "date", Aliases: []string{"datetime", "timestamp"}},
		CounterpartyChain: FieldChain{FieldCounterparty, FieldSender},
		IgnoreColumns:     []string{"Unnamed: 0", ""},
	}
}

// Spec returns the column spec of a field
func (c *DatasetConfig) Spec(f Field) ColumnSpec {
	switch f {
	case FieldAmount:
		return c.Amount
	case FieldMessage:
		return c.Message
	case FieldDirection:
		return c.Direction
	case FieldCounterparty:
		return c.Counterparty
	case FieldSender:
		return c.Sender
	case FieldBank:
		return c.Bank
	case FieldDate:
		return c.Date
	default:
		return ColumnSpec{}
	}
}

// Validate checks that required fields are named and the chain is sound
func (c *DatasetConfig) Validate() error {
	for _, f := range []Field{FieldAmount, FieldMessage} {
		if len(c.Spec(f).candidates()) == 0 {
			return errors.ConfigurationError(errors.CodeMissingConfig, fmt.Sprintf("columns.%s.column", f), nil, nil)
		}
	}

	seen := make(map[Field]bool, len(c.CounterpartyChain))
	for _, f := range c.CounterpartyChain {
		if f != FieldCounterparty && f != FieldSender && f != FieldBank && f != FieldMessage {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "columns.counterparty_chain", f, nil).
				WithSuggestion("use any of: counterparty, sender, bank, message")
		}
		if seen[f] {
			return errors.ConfigurationError(errors.CodeConfigConflict, "columns.counterparty_chain", f, nil).
				WithSuggestion("list each field at most once")
		}
		seen[f] = true
	}
	return nil
}
