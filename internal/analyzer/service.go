// Package analyzer runs the complete analysis of one transaction export:
// load the CSV, normalize every row, apply the session's bank filter and
// aggregate what remains.
//
// Example usage:
//
//	svc, err := analyzer.NewService(analyzer.DefaultConfig(), log)
//	session := analyzer.NewSession(log)
//	session.Banks = analyzer.OnlyBanks("HDFCBNK")
//	result, err := svc.AnalyzeFile(ctx, session, "messages.csv")
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sms-spend-analyzer/internal/aggregator"
	"sms-spend-analyzer/internal/classifier"
	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/internal/normalizer"
	"sms-spend-analyzer/internal/parsers"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

const (
	warnNoBankSelected = "No bank selected; showing no transactions."
	warnNoDebits       = "No debit transactions found."
	warnNoCredits      = "No credit transactions found."
	warnNoDatedRows    = "No valid dates to show debit/credit over time."
)

// Config holds everything a Service needs to interpret datasets
type Config struct {
	Dataset *normalizer.DatasetConfig
	Parse   *parsers.ParseConfig
	Rules   []classifier.Rule
}

// DefaultConfig returns the stock column mapping, CSV dialect and keywords
func DefaultConfig() *Config {
	return &Config{
		Dataset: normalizer.DefaultDatasetConfig(),
		Parse:   parsers.DefaultParseConfig(),
		Rules:   classifier.DefaultRules(),
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Dataset == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "columns", nil, nil)
	}
	if err := c.Dataset.Validate(); err != nil {
		return err
	}
	if c.Parse != nil {
		if err := c.Parse.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of one analysis run
type Result struct {
	RunID       uuid.UUID `json:"run_id" yaml:"run_id"`
	Source      string    `json:"source" yaml:"source"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	Transactions []models.NormalizedTransaction `json:"transactions" yaml:"-"`
	Summary      *aggregator.Summary            `json:"summary" yaml:"summary"`

	Stats    normalizer.Stats            `json:"stats" yaml:"stats"`
	Parse    *parsers.ParseStats         `json:"-" yaml:"-"`
	Columns  map[normalizer.Field]string `json:"columns" yaml:"columns"`
	Warnings []string                    `json:"warnings" yaml:"warnings"`
	Duration time.Duration               `json:"-" yaml:"-"`

	// AvailableBanks lists every bank in the dataset before filtering.
	AvailableBanks []string `json:"available_banks" yaml:"available_banks"`
	// SelectedBanks is nil when every bank is shown.
	SelectedBanks []string `json:"selected_banks" yaml:"selected_banks"`
}

// Service orchestrates loading, normalization, filtering and aggregation
type Service struct {
	config     *Config
	parser     *parsers.DatasetParser
	classifier *classifier.Classifier
	logger     logger.Logger
}

// NewService creates a Service. A nil config uses DefaultConfig.
func NewService(config *Config, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log = logger.OrDefault(log)
	parser, err := parsers.NewDatasetParser(config.Parse, log)
	if err != nil {
		return nil, err
	}

	rules := config.Rules
	if rules == nil {
		rules = classifier.DefaultRules()
	}
	c, err := classifier.New(rules)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     config,
		parser:     parser,
		classifier: c,
		logger:     log.WithComponent("analyzer"),
	}, nil
}

// AnalyzeFile loads a CSV export and analyzes it
func (s *Service) AnalyzeFile(ctx context.Context, session *Session, path string) (*Result, error) {
	session = s.ensureSession(session)
	log := session.Logger.WithComponent("analyzer").WithField("run_id", session.RunID.String())

	var (
		dataset *models.Dataset
		stats   *parsers.ParseStats
	)
	err := logger.TimedOperation("load_dataset", log.WithField("file", path), func() error {
		var err error
		dataset, stats, err = s.parser.ParseFile(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	result, err := s.AnalyzeDataset(ctx, session, dataset)
	if err != nil {
		return nil, err
	}
	result.Parse = stats
	if stats != nil && stats.HasErrors() {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d unreadable line(s) were skipped while loading %s.", stats.ErrorCount, path))
	}
	return result, nil
}

// AnalyzeDataset runs normalization, filtering and aggregation over an
// already loaded dataset. The dataset is not modified.
func (s *Service) AnalyzeDataset(ctx context.Context, session *Session, ds *models.Dataset) (*Result, error) {
	session = s.ensureSession(session)
	if ds == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "dataset", nil, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "analyze", err)
	}

	start := time.Now()
	log := session.Logger.WithComponent("analyzer").WithField("run_id", session.RunID.String())
	op := logger.NewOperationLogger("analyze", log).WithField("source", ds.Source)

	n, err := normalizer.New(s.config.Dataset,
		normalizer.WithClassifier(s.classifier),
		normalizer.WithLocation(session.location()),
		normalizer.WithLogger(log),
	)
	if err != nil {
		op.Error(err, "Invalid dataset configuration")
		return nil, err
	}

	batch, err := n.Normalize(ds)
	if err != nil {
		op.Error(err, "Dataset cannot be analyzed")
		return nil, err
	}
	op.Step("normalize", logger.Fields{
		"rows_read":    batch.Stats.RowsRead,
		"rows_kept":    batch.Stats.RowsKept,
		"rows_dropped": batch.Stats.RowsDropped,
	})

	result := &Result{
		RunID:          session.RunID,
		Source:         ds.Source,
		GeneratedAt:    start,
		Stats:          batch.Stats,
		Columns:        batch.Schema.Mapping(),
		Warnings:       append([]string(nil), batch.Warnings...),
		AvailableBanks: aggregator.Banks(batch.Transactions),
	}

	selection := session.Banks
	if !selection.All() && !batch.Schema.Has(normalizer.FieldBank) {
		col := s.config.Dataset.Spec(normalizer.FieldBank).Column
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Column '%s' not found. Bank filter ignored.", col))
		selection = AllBanks()
	}
	result.SelectedBanks = selection.Names()

	txs := selection.Filter(batch.Transactions)
	op.Step("filter", logger.Fields{
		"selected_banks": result.SelectedBanks,
		"transactions":   len(txs),
	})

	result.Transactions = txs
	result.Summary = aggregator.NewEngine(log).Summarize(txs)
	result.Warnings = append(result.Warnings, s.resultWarnings(selection, batch, result.Summary)...)
	result.Duration = time.Since(start)

	for _, w := range result.Warnings {
		op.Warning(w)
	}
	op.Success("Analysis completed")
	return result, nil
}

// AnalyzeRecords analyzes in-memory records. A nil header is derived from the records.
func (s *Service) AnalyzeRecords(ctx context.Context, session *Session, headers []string, records ...models.RawRecord) (*Result, error) {
	ds := models.NewDataset(headers, records...)
	ds.Source = "records"
	return s.AnalyzeDataset(ctx, session, ds)
}

func (s *Service) resultWarnings(selection BankSelection, batch *normalizer.Batch, summary *aggregator.Summary) []string {
	var warnings []string
	if selection.Empty() {
		warnings = append(warnings, warnNoBankSelected)
	}
	if len(summary.DebitByCounterparty) == 0 {
		warnings = append(warnings, warnNoDebits)
	}
	if len(summary.CreditByCounterparty) == 0 {
		warnings = append(warnings, warnNoCredits)
	}

	// The normalizer already reports a date column where nothing parsed.
	allUndated := batch.Stats.UndatedRows == batch.Stats.RowsKept
	if batch.Schema.Has(normalizer.FieldDate) && summary.TransactionCount > 0 && !summary.HasDates() && !allUndated {
		warnings = append(warnings, warnNoDatedRows)
	}
	return warnings
}

func (s *Service) ensureSession(session *Session) *Session {
	if session == nil {
		return NewSession(s.logger)
	}
	if session.Logger == nil {
		local := *session
		local.Logger = s.logger
		return &local
	}
	return session
}
