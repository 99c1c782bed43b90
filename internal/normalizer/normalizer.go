// Package normalizer turns raw dataset rows into NormalizedTransaction values.
//
// A DatasetConfig names the columns that carry each logical field together with
// accepted aliases. Before any row is touched the configuration is resolved
// against the dataset header into a Schema; if the amount or message column
// cannot be found the whole dataset is rejected with a missing-fields error.
//
// Per row the normalizer:
//   - coerces the amount, dropping the row when that fails
//   - takes the explicit direction label when present, otherwise classifies the message
//   - resolves the counterparty through the configured fallback chain
//   - parses the date, keeping the row without a timestamp when that fails
//
// Input rows are never modified.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"sms-spend-analyzer/internal/classifier"
	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/logger"
)

// Stats counts what happened to the rows of one dataset
type Stats struct {
	RowsRead           int `json:"rows_read" yaml:"rows_read"`
	RowsKept           int `json:"rows_kept" yaml:"rows_kept"`
	RowsDropped        int `json:"rows_dropped" yaml:"rows_dropped"`
	UndatedRows        int `json:"undated_rows" yaml:"undated_rows"`
	UnparsedDates      int `json:"unparsed_dates" yaml:"unparsed_dates"`
	LabelledDirection  int `json:"labelled_direction" yaml:"labelled_direction"`
	InferredDirection  int `json:"inferred_direction" yaml:"inferred_direction"`
	AmbiguousDirection int `json:"ambiguous_direction" yaml:"ambiguous_direction"`
	UnknownDirection   int `json:"unknown_direction" yaml:"unknown_direction"`
}

// Batch is the normalized form of one dataset
type Batch struct {
	Schema       *Schema
	Transactions []models.NormalizedTransaction
	Stats        Stats
	Warnings     []string
}

// RowOutcome describes how a single row was normalized
type RowOutcome struct {
	Dropped      bool
	Labelled     bool
	Ambiguous    bool
	DateUnparsed bool
}

// Normalizer converts dataset rows using a DatasetConfig
type Normalizer struct {
	config     *DatasetConfig
	classifier *classifier.Classifier
	location   *time.Location
	logger     logger.Logger
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClassifier sets the message classifier used when no label is present
func WithClassifier(c *classifier.Classifier) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.classifier = c
		}
	}
}

// WithLocation sets the zone timestamps are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Normalizer. A nil config means DefaultDatasetConfig.
func New(config *DatasetConfig, opts ...Option) (*Normalizer, error) {
	if config == nil {
		config = DefaultDatasetConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	n := &Normalizer{
		config:     config,
		classifier: classifier.Default(),
		location:   time.UTC,
		logger:     logger.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.WithComponent("normalizer")
	return n, nil
}

// Prepare resolves the dataset header. It is the dataset-level precondition
// check and must succeed before rows are normalized.
func (n *Normalizer) Prepare(headers []string) (*Schema, error) {
	schema, err := n.config.Resolve(headers)
	if err != nil {
		n.logger.WithError(err).WithField("headers", headers).Error("Dataset failed precondition check")
		return nil, err
	}

	n.logger.WithField("mapping", schema.Mapping()).Debug("Resolved dataset schema")
	return schema, nil
}

// Normalize checks the dataset header and converts every row
func (n *Normalizer) Normalize(ds *models.Dataset) (*Batch, error) {
	schema, err := n.Prepare(ds.Headers)
	if err != nil {
		return nil, err
	}

	batch := &Batch{
		Schema:       schema,
		Transactions: make([]models.NormalizedTransaction, 0, len(ds.Rows)),
		Warnings:     n.schemaWarnings(schema),
	}

	for _, row := range ds.Rows {
		batch.Stats.RowsRead++

		tx, outcome := n.NormalizeRow(schema, row)
		if outcome.Dropped {
			batch.Stats.RowsDropped++
			n.logger.WithFields(logger.Fields{
				"line":   row.Line,
				"amount": row.Values[mustColumn(schema, FieldAmount)],
			}).Debug("Dropping row with non-numeric amount")
			continue
		}

		batch.Stats.RowsKept++
		if outcome.Labelled {
			batch.Stats.LabelledDirection++
		} else {
			batch.Stats.InferredDirection++
		}
		if outcome.Ambiguous {
			batch.Stats.AmbiguousDirection++
		}
		if tx.Type == models.TxnUnknown {
			batch.Stats.UnknownDirection++
		}
		if tx.Timestamp == nil {
			batch.Stats.UndatedRows++
		}
		if outcome.DateUnparsed {
			batch.Stats.UnparsedDates++
		}

		batch.Transactions = append(batch.Transactions, tx)
	}

	if schema.Has(FieldDate) && batch.Stats.RowsKept > 0 && batch.Stats.UndatedRows == batch.Stats.RowsKept {
		col, _ := schema.Column(FieldDate)
		batch.Warnings = append(batch.Warnings, fmt.Sprintf(
			"No value in column '%s' matched an accepted date format (%s).", col,
			strings.Join(models.AcceptedDatePatterns(), ", ")))
	}
	if batch.Stats.AmbiguousDirection > 0 {
		batch.Warnings = append(batch.Warnings, fmt.Sprintf(
			"%d message(s) matched both debit and credit keywords and were counted as debits.",
			batch.Stats.AmbiguousDirection))
	}

	n.logger.WithFields(logger.Fields{
		"rows_read":    batch.Stats.RowsRead,
		"rows_kept":    batch.Stats.RowsKept,
		"rows_dropped": batch.Stats.RowsDropped,
		"undated_rows": batch.Stats.UndatedRows,
	}).Debug("Normalized dataset")

	return batch, nil
}

// NormalizeRow converts one row against a resolved schema. The row's values
// are only read.
func (n *Normalizer) NormalizeRow(schema *Schema, row models.Row) (models.NormalizedTransaction, RowOutcome) {
	var outcome RowOutcome
	values := row.Values

	rawAmount, _ := values.Value(mustColumn(schema, FieldAmount))
	amount, ok := models.CoerceAmount(rawAmount)
	if !ok {
		outcome.Dropped = true
		return models.NormalizedTransaction{}, outcome
	}

	message, _ := values.Value(mustColumn(schema, FieldMessage))

	var txType models.TxnType
	if label, ok := n.value(schema, values, FieldDirection); ok && strings.TrimSpace(cellString(label)) != "" {
		txType = models.ParseTxnType(cellString(label))
		outcome.Labelled = true
	} else {
		c := n.classifier.Explain(message)
		txType = c.Type
		outcome.Ambiguous = c.Ambiguous
	}

	counterparty := n.resolveCounterparty(schema, values)

	var bank *string
	if v, ok := n.value(schema, values, FieldBank); ok {
		if label := cellString(v); strings.TrimSpace(label) != "" {
			bank = &label
		}
	}

	var ts *time.Time
	if v, ok := n.value(schema, values, FieldDate); ok {
		if t, parsed := models.ParseTimestamp(v, n.location); parsed {
			ts = &t
		} else {
			outcome.DateUnparsed = true
		}
	}

	text, _ := message.(string)
	return models.NewNormalizedTransaction(row.Line, amount, txType, counterparty, bank, ts, text), outcome
}

// resolveCounterparty walks the fallback chain and returns the first non-null value
func (n *Normalizer) resolveCounterparty(schema *Schema, values models.RawRecord) string {
	for _, f := range schema.chain {
		if v, ok := n.value(schema, values, f); ok {
			return cellString(v)
		}
	}
	return ""
}

func (n *Normalizer) value(schema *Schema, values models.RawRecord, f Field) (any, bool) {
	col, ok := schema.Column(f)
	if !ok {
		return nil, false
	}
	return values.Value(col)
}

// schemaWarnings reports optional fields the dataset lacks
func (n *Normalizer) schemaWarnings(schema *Schema) []string {
	var warnings []string
	msgCol := mustColumn(schema, FieldMessage)

	if !schema.Has(FieldDirection) {
		warnings = append(warnings, fmt.Sprintf(
			"Column '%s' not found. Inferring debit/credit from %s.", n.config.Direction.Column, msgCol))
	}

	if !schema.Has(FieldCounterparty) {
		fallback := "left blank"
		for _, f := range schema.chain {
			if f == FieldCounterparty {
				continue
			}
			if col, ok := schema.Column(f); ok {
				fallback = fmt.Sprintf("using '%s'", col)
				break
			}
		}
		warnings = append(warnings, fmt.Sprintf(
			"Column '%s' not found. Counterparty is %s.", n.config.Counterparty.Column, fallback))
	}

	if !schema.Has(FieldDate) {
		warnings = append(warnings, fmt.Sprintf(
			"Column '%s' not found. Daily totals are unavailable.", n.config.Date.Column))
	}
	return warnings
}

// mustColumn returns the column of a field that Resolve guarantees is present
func mustColumn(schema *Schema, f Field) string {
	col, _ := schema.Column(f)
	return col
}

// cellString renders a cell as text; strings pass through unchanged
func cellString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
