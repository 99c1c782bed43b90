// Package reporter renders analysis results for people and for other tools.
//
// Supported output formats:
//   - Console: headed sections with aligned tables for terminal display
//   - JSON: structured document for programmatic consumption
//   - YAML: the same document as JSON, easier to read and diff
//   - CSV: one row per total, group or transaction for spreadsheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"sms-spend-analyzer/internal/aggregator"
	"sms-spend-analyzer/internal/analyzer"
	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
)

// Formats lists every supported format
var Formats = []OutputFormat{FormatConsole, FormatJSON, FormatYAML, FormatCSV}

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `mapstructure:"format"`

	IncludeTransactions bool `mapstructure:"include_transactions"`
	IncludeStats        bool `mapstructure:"include_stats"`
	IncludeWarnings     bool `mapstructure:"include_warnings"`

	// Console formatting options
	UseColors      bool   `mapstructure:"use_colors"`
	TableMaxWidth  int    `mapstructure:"table_max_width"`
	TopN           int    `mapstructure:"top"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	Locale         string `mapstructure:"locale"`

	// CSV options
	CSVDelimiter rune `mapstructure:"csv_delimiter"`
	CSVHeaders   bool `mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeTransactions: false,
		IncludeStats:        true,
		IncludeWarnings:     true,
		UseColors:           true,
		TableMaxWidth:       120,
		TopN:                10,
		CurrencySymbol:      "₹",
		Locale:              "en",
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.format", c.Format, nil).
			WithSuggestion("use one of: console, json, yaml, csv")
	}
	if c.TableMaxWidth < 50 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.table_max_width", c.TableMaxWidth, nil).
			WithSuggestion("table width must be at least 50 characters")
	}
	if c.TopN < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.top", c.TopN, nil)
	}
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "report.locale", c.Locale, err)
		}
	}
	return nil
}

// ReportGenerator generates analysis reports in various formats
type ReportGenerator struct {
	config   *ReportConfig
	grouping digitGrouping
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tag := language.English
	if config.Locale != "" {
		tag = language.Make(config.Locale)
	}

	return &ReportGenerator{
		config:   config,
		grouping: groupingFor(message.NewPrinter(tag)),
	}, nil
}

// GenerateReport renders result in the configured format
func (rg *ReportGenerator) GenerateReport(result *analyzer.Result, writer io.Writer) error {
	if result == nil || result.Summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatYAML:
		return rg.generateYAMLReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.format", rg.config.Format, nil)
	}
}

// Document is the structured form of a report used by the JSON and YAML formats.
// Amounts are fixed two-decimal strings so output is stable across runs.
type Document struct {
	RunID          string            `json:"run_id" yaml:"run_id"`
	Source         string            `json:"source" yaml:"source"`
	GeneratedAt    string            `json:"generated_at" yaml:"generated_at"`
	Columns        map[string]string `json:"columns" yaml:"columns"`
	AvailableBanks []string          `json:"available_banks" yaml:"available_banks"`
	SelectedBanks  []string          `json:"selected_banks,omitempty" yaml:"selected_banks,omitempty"`

	Totals               Totals     `json:"totals" yaml:"totals"`
	ByBank               []BankRow  `json:"by_bank" yaml:"by_bank"`
	DebitByCounterparty  []GroupRow `json:"debit_by_counterparty" yaml:"debit_by_counterparty"`
	CreditByCounterparty []GroupRow `json:"credit_by_counterparty" yaml:"credit_by_counterparty"`
	DebitByDate          []GroupRow `json:"debit_by_date" yaml:"debit_by_date"`
	CreditByDate         []GroupRow `json:"credit_by_date" yaml:"credit_by_date"`

	Stats        any              `json:"stats,omitempty" yaml:"stats,omitempty"`
	Warnings     []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Transactions []TransactionRow `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

// Totals holds the grand totals
type Totals struct {
	Transactions  int    `json:"transactions" yaml:"transactions"`
	TotalDebited  string `json:"total_debited" yaml:"total_debited"`
	TotalCredited string `json:"total_credited" yaml:"total_credited"`
}

// BankRow is one bank of the per-bank view
type BankRow struct {
	Bank          string `json:"bank" yaml:"bank"`
	Unbucketed    bool   `json:"unbucketed,omitempty" yaml:"unbucketed,omitempty"`
	TotalDebited  string `json:"total_debited" yaml:"total_debited"`
	TotalCredited string `json:"total_credited" yaml:"total_credited"`
	Count         int    `json:"count" yaml:"count"`
}

// GroupRow is one counterparty or one day of a grouped view
type GroupRow struct {
	Key   string `json:"key" yaml:"key"`
	Total string `json:"total" yaml:"total"`
	Count int    `json:"count" yaml:"count"`
}

// TransactionRow is one normalized transaction
type TransactionRow struct {
	Line         int    `json:"line" yaml:"line"`
	Type         string `json:"type" yaml:"type"`
	Amount       string `json:"amount" yaml:"amount"`
	Counterparty string `json:"counterparty" yaml:"counterparty"`
	Bank         string `json:"bank,omitempty" yaml:"bank,omitempty"`
	Timestamp    string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Message      string `json:"message" yaml:"message"`
}

// BuildDocument converts a result into its report document
func (rg *ReportGenerator) BuildDocument(result *analyzer.Result) *Document {
	s := result.Summary
	doc := &Document{
		RunID:          result.RunID.String(),
		Source:         result.Source,
		GeneratedAt:    result.GeneratedAt.Format(time.RFC3339),
		Columns:        make(map[string]string, len(result.Columns)),
		AvailableBanks: nonNil(result.AvailableBanks),
		SelectedBanks:  result.SelectedBanks,
		Totals: Totals{
			Transactions:  s.TransactionCount,
			TotalDebited:  s.TotalDebited.StringFixed(2),
			TotalCredited: s.TotalCredited.StringFixed(2),
		},
		ByBank:               make([]BankRow, 0, len(s.ByBank)),
		DebitByCounterparty:  groupRows(s.DebitByCounterparty),
		CreditByCounterparty: groupRows(s.CreditByCounterparty),
		DebitByDate:          dayRows(s.DebitByDate),
		CreditByDate:         dayRows(s.CreditByDate),
	}
	for field, col := range result.Columns {
		doc.Columns[string(field)] = col
	}
	for _, b := range s.ByBank {
		doc.ByBank = append(doc.ByBank, BankRow{
			Bank:          b.Bank,
			Unbucketed:    b.Unbucketed,
			TotalDebited:  b.Debit.StringFixed(2),
			TotalCredited: b.Credit.StringFixed(2),
			Count:         b.Count,
		})
	}

	if rg.config.IncludeStats {
		doc.Stats = result.Stats
	}
	if rg.config.IncludeWarnings {
		doc.Warnings = result.Warnings
	}
	if rg.config.IncludeTransactions {
		doc.Transactions = make([]TransactionRow, 0, len(result.Transactions))
		for _, tx := range result.Transactions {
			doc.Transactions = append(doc.Transactions, transactionRow(tx))
		}
	}
	return doc
}

func transactionRow(tx models.NormalizedTransaction) TransactionRow {
	row := TransactionRow{
		Line:         tx.Line,
		Type:         tx.Type.String(),
		Amount:       tx.Amount.StringFixed(2),
		Counterparty: tx.Counterparty,
		Message:      tx.Message,
	}
	if label, ok := tx.BankLabel(); ok {
		row.Bank = label
	}
	if tx.Timestamp != nil {
		row.Timestamp = tx.Timestamp.Format(models.TimestampLayout)
	}
	return row
}

func groupRows(groups []aggregator.GroupTotal) []GroupRow {
	out := make([]GroupRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupRow{Key: g.Key, Total: g.Total.StringFixed(2), Count: g.Count})
	}
	return out
}

func dayRows(days []aggregator.DayTotal) []GroupRow {
	out := make([]GroupRow, 0, len(days))
	for _, d := range days {
		out = append(out, GroupRow{Key: d.Day(), Total: d.Total.StringFixed(2), Count: d.Count})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *analyzer.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rg.BuildDocument(result)); err != nil {
		return errors.ReportError(string(FormatJSON), err)
	}
	return nil
}

// generateYAMLReport generates the same document as JSON in YAML
func (rg *ReportGenerator) generateYAMLReport(result *analyzer.Result, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(rg.BuildDocument(result)); err != nil {
		return errors.ReportError(string(FormatYAML), err)
	}
	if err := encoder.Close(); err != nil {
		return errors.ReportError(string(FormatYAML), err)
	}
	return nil
}

// generateCSVReport writes totals, groups and (optionally) transactions as
// rows distinguished by the Record_Type column
func (rg *ReportGenerator) generateCSVReport(result *analyzer.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if rg.config.CSVDelimiter != 0 {
		csvWriter.Comma = rg.config.CSVDelimiter
	}

	write := func(record ...string) error {
		if err := csvWriter.Write(record); err != nil {
			return errors.ReportError(string(FormatCSV), err)
		}
		return nil
	}

	if rg.config.CSVHeaders {
		if err := write("Record_Type", "Key", "Direction", "Amount", "Count", "Bank", "Date", "Line"); err != nil {
			return err
		}
	}

	s := result.Summary
	if err := write("grand_total", "", models.TxnDebit.String(), s.TotalDebited.StringFixed(2), "", "", "", ""); err != nil {
		return err
	}
	if err := write("grand_total", "", models.TxnCredit.String(), s.TotalCredited.StringFixed(2), "", "", "", ""); err != nil {
		return err
	}

	for _, b := range s.ByBank {
		count := strconv.Itoa(b.Count)
		if err := write("bank", b.Bank, models.TxnDebit.String(), b.Debit.StringFixed(2), count, b.Bank, "", ""); err != nil {
			return err
		}
		if err := write("bank", b.Bank, models.TxnCredit.String(), b.Credit.StringFixed(2), count, b.Bank, "", ""); err != nil {
			return err
		}
	}

	for _, view := range []struct {
		txType models.TxnType
		groups []aggregator.GroupTotal
	}{
		{models.TxnDebit, s.DebitByCounterparty},
		{models.TxnCredit, s.CreditByCounterparty},
	} {
		for _, g := range view.groups {
			if err := write("counterparty", g.Key, view.txType.String(), g.Total.StringFixed(2), strconv.Itoa(g.Count), "", "", ""); err != nil {
				return err
			}
		}
	}

	for _, view := range []struct {
		txType models.TxnType
		days   []aggregator.DayTotal
	}{
		{models.TxnDebit, s.DebitByDate},
		{models.TxnCredit, s.CreditByDate},
	} {
		for _, d := range view.days {
			if err := write("date", d.Day(), view.txType.String(), d.Total.StringFixed(2), strconv.Itoa(d.Count), "", d.Day(), ""); err != nil {
				return err
			}
		}
	}

	if rg.config.IncludeTransactions {
		for _, tx := range result.Transactions {
			row := transactionRow(tx)
			if err := write("transaction", row.Counterparty, row.Type, row.Amount, "1", row.Bank, row.Timestamp, strconv.Itoa(row.Line)); err != nil {
				return err
			}
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.ReportError(string(FormatCSV), err)
	}
	return nil
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *analyzer.Result, writer io.Writer) error {
	heading := color.New(color.Bold, color.FgCyan)
	warn := color.New(color.FgYellow)
	if !rg.config.UseColors {
		heading.DisableColor()
		warn.DisableColor()
	}
	section := func(title string) {
		heading.Fprintf(writer, "=== %s ===\n", title)
	}

	s := result.Summary

	heading.Fprintf(writer, "SPEND ANALYSIS REPORT\n")
	fmt.Fprintf(writer, "Run:       %s\n", result.RunID)
	fmt.Fprintf(writer, "Source:    %s\n", result.Source)
	fmt.Fprintf(writer, "Generated: %s\n", result.GeneratedAt.Format(time.RFC3339))
	if result.SelectedBanks == nil {
		fmt.Fprintf(writer, "Banks:     all\n\n")
	} else {
		fmt.Fprintf(writer, "Banks:     %s\n\n", strings.Join(result.SelectedBanks, ", "))
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		section("WARNINGS")
		for _, w := range result.Warnings {
			warn.Fprintf(writer, "  ! %s\n", w)
		}
		fmt.Fprintf(writer, "\n")
	}

	section("OVERALL SUMMARY")
	fmt.Fprintf(writer, "Transactions:              %d\n", s.TransactionCount)
	fmt.Fprintf(writer, "Total Debited (Spent):     %s\n", rg.FormatAmount(s.TotalDebited))
	fmt.Fprintf(writer, "Total Credited (Received): %s\n\n", rg.FormatAmount(s.TotalCredited))

	if len(s.ByBank) > 0 {
		section("BANK-WISE SUMMARY")
		rg.printBankTable(s.ByBank, writer)
		fmt.Fprintf(writer, "\n")
	}

	section("DEBIT ANALYSIS")
	rg.printGroupTable("Amount debited to each name", s.DebitByCounterparty, writer)
	rg.printDayTable("Debit over time", s.DebitByDate, writer)
	fmt.Fprintf(writer, "\n")

	section("CREDIT ANALYSIS")
	rg.printGroupTable("Amount credited from each name", s.CreditByCounterparty, writer)
	rg.printDayTable("Credit over time", s.CreditByDate, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeTransactions && len(result.Transactions) > 0 {
		section("TRANSACTIONS")
		rg.printTransactionList(result.Transactions, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeStats {
		section("PROCESSING STATISTICS")
		st := result.Stats
		fmt.Fprintf(writer, "Rows Read:           %d\n", st.RowsRead)
		fmt.Fprintf(writer, "Rows Kept:           %d\n", st.RowsKept)
		fmt.Fprintf(writer, "Rows Dropped:        %d\n", st.RowsDropped)
		fmt.Fprintf(writer, "Labelled Direction:  %d\n", st.LabelledDirection)
		fmt.Fprintf(writer, "Inferred Direction:  %d\n", st.InferredDirection)
		fmt.Fprintf(writer, "Ambiguous Direction: %d\n", st.AmbiguousDirection)
		fmt.Fprintf(writer, "Unknown Direction:   %d\n", st.UnknownDirection)
		fmt.Fprintf(writer, "Undated Rows:        %d\n", st.UndatedRows)
		fmt.Fprintf(writer, "Unparsed Dates:      %d\n", st.UnparsedDates)
		if result.Parse != nil {
			fmt.Fprintf(writer, "Unreadable Lines:    %d\n", result.Parse.ErrorCount)
			fmt.Fprintf(writer, "Encoding:            %s\n", result.Parse.Decoded)
		}
		if result.Duration > 0 {
			fmt.Fprintf(writer, "Processing Time:     %v\n", result.Duration.Round(time.Microsecond))
		}
	}

	return nil
}

// FormatAmount renders an amount with the currency symbol and locale digit grouping
func (rg *ReportGenerator) FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	dot := strings.IndexByte(fixed, '.')

	sign := ""
	if d.Round(2).IsNegative() {
		sign = "-"
	}
	amount := sign + rg.grouping.apply(fixed[:dot]) + fixed[dot:]
	if rg.config.CurrencySymbol == "" {
		return amount
	}
	return rg.config.CurrencySymbol + " " + amount
}

// digitGrouping is the thousands grouping of a locale. Secondary is the size
// of the groups left of the first one (2 for lakh/crore style grouping).
type digitGrouping struct {
	sep       string
	primary   int
	secondary int
}

// groupingFor reads the grouping a printer applies to a known integer, so
// amounts of any size can be grouped without going through int64.
func groupingFor(p *message.Printer) digitGrouping {
	sample := p.Sprintf("%d", 1234567890)

	var groups []int
	g := digitGrouping{}
	run := 0
	var sep strings.Builder
	for _, r := range sample {
		if r >= '0' && r <= '9' {
			if sep.Len() > 0 && g.sep == "" {
				g.sep = sep.String()
			}
			sep.Reset()
			run++
			continue
		}
		if run > 0 {
			groups = append(groups, run)
			run = 0
		}
		sep.WriteRune(r)
	}
	groups = append(groups, run)

	if g.sep == "" || len(groups) < 2 {
		return digitGrouping{}
	}
	g.primary = groups[len(groups)-1]
	g.secondary = g.primary
	if len(groups) > 2 {
		g.secondary = groups[len(groups)-2]
	}
	return g
}

func (g digitGrouping) apply(digits string) string {
	if g.primary <= 0 || len(digits) <= g.primary {
		return digits
	}

	var parts []string
	end := len(digits)
	size := g.primary
	for end > size {
		parts = append(parts, digits[end-size:end])
		end -= size
		size = g.secondary
	}
	parts = append(parts, digits[:end])

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, g.sep)
}

func (rg *ReportGenerator) printBankTable(banks []aggregator.BankTotals, writer io.Writer) {
	keys := make([]string, 0, len(banks))
	for _, b := range banks {
		keys = append(keys, b.Bank)
	}
	width := rg.keyWidth("Bank", keys)

	fmt.Fprintf(writer, "  %-*s  %18s  %18s  %6s\n", width, "Bank", "Debited", "Credited", "Count")
	for _, b := range banks {
		fmt.Fprintf(writer, "  %-*s  %18s  %18s  %6d\n", width, rg.truncate(b.Bank, width),
			rg.FormatAmount(b.Debit), rg.FormatAmount(b.Credit), b.Count)
	}
}

func (rg *ReportGenerator) printGroupTable(title string, groups []aggregator.GroupTotal, writer io.Writer) {
	fmt.Fprintf(writer, "%s:\n", title)
	if len(groups) == 0 {
		fmt.Fprintf(writer, "  (none)\n")
		return
	}

	shown := groups
	if rg.config.TopN > 0 && len(shown) > rg.config.TopN {
		shown = shown[:rg.config.TopN]
	}
	keys := make([]string, 0, len(shown))
	for _, g := range shown {
		keys = append(keys, displayKey(g.Key))
	}
	width := rg.keyWidth("Name", keys)

	for i, g := range shown {
		fmt.Fprintf(writer, "  %2d. %-*s  %18s  (%d)\n", i+1, width, rg.truncate(displayKey(g.Key), width),
			rg.FormatAmount(g.Total), g.Count)
	}
	if len(groups) > len(shown) {
		fmt.Fprintf(writer, "  ... and %d more\n", len(groups)-len(shown))
	}
}

func (rg *ReportGenerator) printDayTable(title string, days []aggregator.DayTotal, writer io.Writer) {
	fmt.Fprintf(writer, "%s:\n", title)
	if len(days) == 0 {
		fmt.Fprintf(writer, "  (no dated transactions)\n")
		return
	}
	for _, d := range days {
		fmt.Fprintf(writer, "  %s  %18s  (%d)\n", d.Day(), rg.FormatAmount(d.Total), d.Count)
	}
}

func (rg *ReportGenerator) printTransactionList(transactions []models.NormalizedTransaction, writer io.Writer) {
	for i, tx := range transactions {
		row := transactionRow(tx)
		when := row.Timestamp
		if when == "" {
			when = "-"
		}
		fmt.Fprintf(writer, "  %d. Line %d, %s %s, %s, %s\n",
			i+1, row.Line, row.Type, rg.FormatAmount(tx.Amount), displayKey(row.Counterparty), when)

		// Limit output for very long lists
		if i >= 9 && len(transactions) > 10 {
			fmt.Fprintf(writer, "  ... and %d more\n", len(transactions)-10)
			break
		}
	}
}

// keyWidth is the widest key, capped so a row fits in TableMaxWidth
func (rg *ReportGenerator) keyWidth(header string, keys []string) int {
	width := len(header)
	for _, k := range keys {
		if n := len([]rune(k)); n > width {
			width = n
		}
	}
	limit := rg.config.TableMaxWidth - 48
	if limit < 8 {
		limit = 8
	}
	if width > limit {
		width = limit
	}
	return width
}

func (rg *ReportGenerator) truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func displayKey(key string) string {
	if key == "" {
		return "(blank)"
	}
	return key
}

// Config returns the current configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}
