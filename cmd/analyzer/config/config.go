// Package config turns viper settings (config file, ANALYZER_* environment
// variables and bound flags) into the configuration structs of the internal
// packages.
package config

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"sms-spend-analyzer/internal/analyzer"
	"sms-spend-analyzer/internal/classifier"
	"sms-spend-analyzer/internal/generator"
	"sms-spend-analyzer/internal/normalizer"
	"sms-spend-analyzer/internal/parsers"
	"sms-spend-analyzer/internal/reporter"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. ANALYZER_REPORT_FORMAT
const EnvPrefix = "ANALYZER"

// Setting keys shared with the command flags
const (
	KeyVerbose  = "verbose"
	KeyTimezone = "timezone"
	KeyBanks    = "banks"

	KeyReportFormat       = "report.format"
	KeyReportOutput       = "report.output"
	KeyReportTop          = "report.top"
	KeyReportTransactions = "report.include_transactions"
	KeyReportColors       = "report.colors"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogFile   = "log.file"

	KeyGenerateCount = "generate.count"
	KeyGenerateSeed  = "generate.seed"
)

// New returns a viper instance with defaults and environment overrides applied
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default of every setting except "banks", whose
// absence means all banks, and "generate.seed", which defaults to the clock.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyTimezone, "UTC")

	dataset := normalizer.DefaultDatasetConfig()
	for _, f := range normalizer.AllFields {
		spec := dataset.Spec(f)
		v.SetDefault(columnKey(f, "column"), spec.Column)
		v.SetDefault(columnKey(f, "aliases"), spec.Aliases)
	}
	chain := make([]string, len(dataset.CounterpartyChain))
	for i, f := range dataset.CounterpartyChain {
		chain[i] = string(f)
	}
	v.SetDefault("columns.counterparty_chain", chain)
	v.SetDefault("columns.ignore", dataset.IgnoreColumns)

	v.SetDefault("keywords.debit", classifier.DefaultDebitKeywords)
	v.SetDefault("keywords.credit", classifier.DefaultCreditKeywords)

	parse := parsers.DefaultParseConfig()
	v.SetDefault("csv.delimiter", string(parse.Delimiter))
	v.SetDefault("csv.comment", "")
	v.SetDefault("csv.trim_leading_space", parse.TrimLeadingSpace)
	v.SetDefault("csv.skip_empty_rows", parse.SkipEmptyRows)
	v.SetDefault("csv.max_field_size", parse.MaxFieldSize)
	v.SetDefault("csv.encoding_fallback", parse.EncodingFallback)
	v.SetDefault("csv.encoding_probe_lines", parse.EncodingProbeLines)
	v.SetDefault("csv.null_values", parse.NullValues)

	report := reporter.DefaultReportConfig()
	v.SetDefault(KeyReportFormat, string(report.Format))
	v.SetDefault(KeyReportOutput, "")
	v.SetDefault(KeyReportTop, report.TopN)
	v.SetDefault(KeyReportTransactions, report.IncludeTransactions)
	v.SetDefault(KeyReportColors, report.UseColors)
	v.SetDefault("report.include_stats", report.IncludeStats)
	v.SetDefault("report.include_warnings", report.IncludeWarnings)
	v.SetDefault("report.width", report.TableMaxWidth)
	v.SetDefault("report.currency_symbol", report.CurrencySymbol)
	v.SetDefault("report.locale", report.Locale)
	v.SetDefault("report.csv_delimiter", string(report.CSVDelimiter))
	v.SetDefault("report.csv_headers", report.CSVHeaders)

	log := logger.DefaultConfig()
	v.SetDefault(KeyLogLevel, string(log.Level))
	v.SetDefault(KeyLogFormat, string(log.Format))
	v.SetDefault(KeyLogFile, "")

	gen := generator.DefaultConfig()
	v.SetDefault(KeyGenerateCount, gen.Count)
	v.SetDefault("generate.span", gen.Span)
	v.SetDefault("generate.min_amount", gen.MinAmount)
	v.SetDefault("generate.max_amount", gen.MaxAmount)
	v.SetDefault("generate.backup_set", gen.BackupSet)
	v.SetDefault("generate.banks", gen.Banks)
	v.SetDefault("generate.persons", gen.Persons)
	v.SetDefault("generate.merchants", gen.Merchants)
	v.SetDefault("generate.upi_handles", gen.UPIHandles)
}

// LoggerConfig builds the logger configuration. --verbose forces debug level.
func LoggerConfig(v *viper.Viper) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if v.GetBool(KeyVerbose) {
		config = logger.DebugConfig()
	} else {
		config.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	}
	config.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))

	if file := strings.TrimSpace(v.GetString(KeyLogFile)); file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", config.Level, err)
	}
	return config, nil
}

// DatasetConfig builds the column mapping from the "columns" section
func DatasetConfig(v *viper.Viper) (*normalizer.DatasetConfig, error) {
	config := &normalizer.DatasetConfig{
		Amount:        columnSpec(v, normalizer.FieldAmount),
		Message:       columnSpec(v, normalizer.FieldMessage),
		Direction:     columnSpec(v, normalizer.FieldDirection),
		Counterparty:  columnSpec(v, normalizer.FieldCounterparty),
		Sender:        columnSpec(v, normalizer.FieldSender),
		Bank:          columnSpec(v, normalizer.FieldBank),
		Date:          columnSpec(v, normalizer.FieldDate),
		IgnoreColumns: v.GetStringSlice("columns.ignore"),
	}
	for _, name := range v.GetStringSlice("columns.counterparty_chain") {
		config.CounterpartyChain = append(config.CounterpartyChain, normalizer.Field(strings.ToLower(strings.TrimSpace(name))))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func columnKey(f normalizer.Field, leaf string) string {
	return "columns." + string(f) + "." + leaf
}

func columnSpec(v *viper.Viper, f normalizer.Field) normalizer.ColumnSpec {
	return normalizer.ColumnSpec{
		Column:  v.GetString(columnKey(f, "column")),
		Aliases: v.GetStringSlice(columnKey(f, "aliases")),
	}
}

// ClassifierRules builds the keyword rule table, debit first
func ClassifierRules(v *viper.Viper) ([]classifier.Rule, error) {
	c, err := classifier.FromKeywords(v.GetStringSlice("keywords.debit"), v.GetStringSlice("keywords.credit"))
	if err != nil {
		return nil, err
	}
	return c.Rules(), nil
}

// ParseConfig builds the CSV dialect from the "csv" section
func ParseConfig(v *viper.Viper) (*parsers.ParseConfig, error) {
	delimiter, err := runeSetting(v, "csv.delimiter")
	if err != nil {
		return nil, err
	}
	comment, err := runeSetting(v, "csv.comment")
	if err != nil {
		return nil, err
	}

	config := &parsers.ParseConfig{
		Delimiter:          delimiter,
		Comment:            comment,
		TrimLeadingSpace:   v.GetBool("csv.trim_leading_space"),
		SkipEmptyRows:      v.GetBool("csv.skip_empty_rows"),
		MaxFieldSize:       v.GetInt("csv.max_field_size"),
		EncodingFallback:   strings.ToLower(v.GetString("csv.encoding_fallback")),
		EncodingProbeLines: v.GetInt("csv.encoding_probe_lines"),
		NullValues:         v.GetStringSlice("csv.null_values"),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// AnalyzerConfig assembles the service configuration
func AnalyzerConfig(v *viper.Viper) (*analyzer.Config, error) {
	dataset, err := DatasetConfig(v)
	if err != nil {
		return nil, err
	}
	parse, err := ParseConfig(v)
	if err != nil {
		return nil, err
	}
	rules, err := ClassifierRules(v)
	if err != nil {
		return nil, err
	}
	return &analyzer.Config{Dataset: dataset, Parse: parse, Rules: rules}, nil
}

// ReportConfig builds the report configuration from the "report" section
func ReportConfig(v *viper.Viper) (*reporter.ReportConfig, error) {
	csvDelimiter, err := runeSetting(v, "report.csv_delimiter")
	if err != nil {
		return nil, err
	}

	config := &reporter.ReportConfig{
		Format:              reporter.OutputFormat(strings.ToLower(v.GetString(KeyReportFormat))),
		IncludeTransactions: v.GetBool(KeyReportTransactions),
		IncludeStats:        v.GetBool("report.include_stats"),
		IncludeWarnings:     v.GetBool("report.include_warnings"),
		UseColors:           v.GetBool(KeyReportColors),
		TableMaxWidth:       v.GetInt("report.width"),
		TopN:                v.GetInt(KeyReportTop),
		CurrencySymbol:      v.GetString("report.currency_symbol"),
		Locale:              v.GetString("report.locale"),
		CSVDelimiter:        csvDelimiter,
		CSVHeaders:          v.GetBool("report.csv_headers"),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Location loads the zone that naive timestamps are read in
func Location(v *viper.Viper) (*time.Location, error) {
	name := strings.TrimSpace(v.GetString(KeyTimezone))
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyTimezone, name, err).
			WithSuggestion("use an IANA zone name such as Asia/Kolkata, or Local")
	}
	return loc, nil
}

// BankSelection returns the bank filter. An unset "banks" selects every bank;
// a set but empty list is the empty selection.
func BankSelection(v *viper.Viper) analyzer.BankSelection {
	if !v.IsSet(KeyBanks) {
		return analyzer.AllBanks()
	}
	return analyzer.OnlyBanks(v.GetStringSlice(KeyBanks)...)
}

// GeneratorConfig builds the sample generator configuration
func GeneratorConfig(v *viper.Viper) (*generator.Config, error) {
	loc, err := Location(v)
	if err != nil {
		return nil, err
	}

	config := generator.DefaultConfig()
	config.Count = v.GetInt(KeyGenerateCount)
	if v.IsSet(KeyGenerateSeed) {
		config.Seed = v.GetInt64(KeyGenerateSeed)
	}
	config.Span = v.GetDuration("generate.span")
	config.MinAmount = v.GetInt("generate.min_amount")
	config.MaxAmount = v.GetInt("generate.max_amount")
	config.BackupSet = v.GetString("generate.backup_set")
	config.Location = loc
	config.Banks = v.GetStringSlice("generate.banks")
	config.Persons = v.GetStringSlice("generate.persons")
	config.Merchants = v.GetStringSlice("generate.merchants")
	config.UPIHandles = v.GetStringSlice("generate.upi_handles")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// runeSetting reads a single-character setting. "tab" and "\t" mean a tab;
// an empty value is the zero rune.
func runeSetting(v *viper.Viper, key string) (rune, error) {
	s := v.GetString(key)
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.ConfigurationError(errors.CodeInvalidConfig, key, s, nil).
			WithSuggestion("use a single character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
