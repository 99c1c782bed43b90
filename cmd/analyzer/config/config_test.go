package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-spend-analyzer/internal/classifier"
	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/internal/normalizer"
	"sms-spend-analyzer/internal/parsers"
	"sms-spend-analyzer/internal/reporter"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

func fromYAML(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return v
}

func TestDefaultsMatchPackageDefaults(t *testing.T) {
	v := New()

	dataset, err := DatasetConfig(v)
	require.NoError(t, err)
	assert.Equal(t, normalizer.DefaultDatasetConfig(), dataset)

	parse, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, parsers.DefaultParseConfig(), parse)

	report, err := ReportConfig(v)
	require.NoError(t, err)
	assert.Equal(t, reporter.DefaultReportConfig(), report)

	rules, err := ClassifierRules(v)
	require.NoError(t, err)
	assert.Equal(t, classifier.DefaultRules(), rules)

	loc, err := Location(v)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	assert.True(t, BankSelection(v).All())

	logConfig, err := LoggerConfig(v)
	require.NoError(t, err)
	assert.Equal(t, logger.DefaultConfig(), logConfig)
}

func TestConfigFileOverrides(t *testing.T) {
	v := fromYAML(t, `
timezone: Asia/Kolkata
banks: [SBI, HDFCBNK]
columns:
  amount:
    column: amt_inr
  bank:
    aliases: [account_name]
  counterparty_chain: [sender, bank]
  ignore: [idx]
keywords:
  debit: [withdrawn, "Paid"]
csv:
  delimiter: ";"
  encoding_fallback: strict
report:
  format: yaml
  top: 3
  currency_symbol: "Rs."
`)

	dataset, err := DatasetConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "amt_inr", dataset.Amount.Column)
	assert.Equal(t, []string{"amt", "value"}, dataset.Amount.Aliases, "unset aliases keep their defaults")
	assert.Equal(t, "Bank", dataset.Bank.Column)
	assert.Equal(t, []string{"account_name"}, dataset.Bank.Aliases)
	assert.Equal(t, normalizer.FieldChain{normalizer.FieldSender, normalizer.FieldBank}, dataset.CounterpartyChain)
	assert.Equal(t, []string{"idx"}, dataset.IgnoreColumns)

	rules, err := ClassifierRules(v)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.TxnDebit, rules[0].Type)
	assert.Equal(t, []string{"withdrawn", "paid"}, rules[0].Keywords)
	assert.Equal(t, classifier.DefaultCreditKeywords, rules[1].Keywords)

	parse, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, ';', parse.Delimiter)
	assert.Equal(t, parsers.EncodingStrict, parse.EncodingFallback)

	report, err := ReportConfig(v)
	require.NoError(t, err)
	assert.Equal(t, reporter.FormatYAML, report.Format)
	assert.Equal(t, 3, report.TopN)
	assert.Equal(t, "Rs.", report.CurrencySymbol)

	loc, err := Location(v)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	banks := BankSelection(v)
	assert.Equal(t, []string{"HDFCBNK", "SBI"}, banks.Names())
}

func TestBankSelection_EmptyList(t *testing.T) {
	v := fromYAML(t, "banks: []\n")
	assert.True(t, BankSelection(v).Empty())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ANALYZER_REPORT_FORMAT", "csv")
	t.Setenv("ANALYZER_CSV_DELIMITER", "tab")

	v := New()

	report, err := ReportConfig(v)
	require.NoError(t, err)
	assert.Equal(t, reporter.FormatCSV, report.Format)

	parse, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, '\t', parse.Delimiter)
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		build func(v *viper.Viper) error
	}{
		{
			name: "unknown chain field",
			yaml: "columns:\n  counterparty_chain: [date]\n",
			build: func(v *viper.Viper) error {
				_, err := DatasetConfig(v)
				return err
			},
		},
		{
			name: "no amount column",
			yaml: "columns:\n  amount:\n    column: ''\n    aliases: []\n",
			build: func(v *viper.Viper) error {
				_, err := DatasetConfig(v)
				return err
			},
		},
		{
			name: "blank keyword",
			yaml: "keywords:\n  credit: ['  ']\n",
			build: func(v *viper.Viper) error {
				_, err := ClassifierRules(v)
				return err
			},
		},
		{
			name: "multi-character delimiter",
			yaml: "csv:\n  delimiter: '||'\n",
			build: func(v *viper.Viper) error {
				_, err := ParseConfig(v)
				return err
			},
		},
		{
			name: "unknown report format",
			yaml: "report:\n  format: pdf\n",
			build: func(v *viper.Viper) error {
				_, err := ReportConfig(v)
				return err
			},
		},
		{
			name: "unknown timezone",
			yaml: "timezone: Mars/Olympus\n",
			build: func(v *viper.Viper) error {
				_, err := Location(v)
				return err
			},
		},
		{
			name: "unknown log level",
			yaml: "log:\n  level: chatty\n",
			build: func(v *viper.Viper) error {
				_, err := LoggerConfig(v)
				return err
			},
		},
		{
			name: "inverted amount range",
			yaml: "generate:\n  min_amount: 500\n  max_amount: 10\n",
			build: func(v *viper.Viper) error {
				_, err := GeneratorConfig(v)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(fromYAML(t, tt.yaml))
			require.Error(t, err)

			analyzerErr, ok := errors.AsAnalyzerError(err)
			require.True(t, ok, "expected an AnalyzerError, got %T", err)
			assert.Equal(t, errors.CategoryConfiguration, analyzerErr.Category)
		})
	}
}

func TestLoggerConfig(t *testing.T) {
	v := fromYAML(t, "log:\n  format: json\n  file: /tmp/analyzer.log\n")
	v.Set(KeyVerbose, true)

	config, err := LoggerConfig(v)
	require.NoError(t, err)
	assert.Equal(t, logger.DebugLevel, config.Level)
	assert.Equal(t, logger.JSONFormat, config.Format)
	assert.Equal(t, logger.FileOutput, config.Output)
	assert.Equal(t, "/tmp/analyzer.log", config.File)
}

func TestGeneratorConfig(t *testing.T) {
	v := fromYAML(t, `
timezone: Asia/Kolkata
generate:
  count: 25
  seed: 99
  span: 240h
  banks: [SBI]
`)

	config, err := GeneratorConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 25, config.Count)
	assert.Equal(t, int64(99), config.Seed)
	assert.Equal(t, 240*time.Hour, config.Span)
	assert.Equal(t, []string{"SBI"}, config.Banks)
	assert.Equal(t, "Asia/Kolkata", config.Location.String())
	assert.NotEmpty(t, config.Merchants)
}
