package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sms-spend-analyzer/cmd/analyzer/config"
	"sms-spend-analyzer/internal/analyzer"
	"sms-spend-analyzer/internal/reporter"
	"sms-spend-analyzer/pkg/errors"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze <transactions.csv>",
		Short: "Summarize debits and credits from a transactions export",
		Long: `Analyze reads a CSV export of bank SMS transactions and reports total
money debited and credited, a per-bank breakdown, the largest counterparties
in each direction and daily totals.

Columns are matched by name (see 'columns' in the config file). The amount
and message columns are required; bank, date, sender, merchant and an
explicit debit/credit column are used when present.

Examples:
  # Console report for every bank
  analyzer analyze transactions.csv

  # Only two banks, as JSON written to a file
  analyzer analyze transactions.csv --bank HDFCBNK --bank SBI -f json -o summary.json

  # Read naive timestamps as Indian Standard Time and list transactions
  analyzer analyze transactions.csv --timezone Asia/Kolkata --transactions`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{
				"output-format": config.KeyReportFormat,
				"output-file":   config.KeyReportOutput,
				"bank":          config.KeyBanks,
				"timezone":      config.KeyTimezone,
				"top":           config.KeyReportTop,
				"transactions":  config.KeyReportTransactions,
			}); err != nil {
				return err
			}
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				a.v.Set(config.KeyReportColors, false)
			}
			return a.validateAnalyzeFlags(args[0])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args[0])
		},
	}

	flags := c.Flags()
	flags.StringP("output-format", "f", "console", "output format: console, json, yaml, csv")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")
	flags.StringSliceP("bank", "b", nil, "only report these banks; repeat or comma-separate (an empty --bank= warns and keeps every bank)")
	flags.String("timezone", "UTC", "zone that timestamps without an offset are read in")
	flags.Int("top", 10, "counterparties shown per table in console output (0 shows all)")
	flags.Bool("transactions", false, "include individual transactions in the report")
	flags.Bool("no-color", false, "disable colored console output")
	return c
}

func (a *app) validateAnalyzeFlags(path string) error {
	if err := validateFileExists(path, "transactions file"); err != nil {
		return err
	}

	format := reporter.OutputFormat(strings.ToLower(a.v.GetString(config.KeyReportFormat)))
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, nil).
			WithSuggestion(fmt.Sprintf("use one of: %s", formatList()))
	}

	if a.v.GetInt(config.KeyReportTop) < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "top", a.v.GetInt(config.KeyReportTop), nil).
			WithSuggestion("use 0 to show every counterparty")
	}

	return validateOutputPath(a.v.GetString(config.KeyReportOutput))
}

func (a *app) runAnalyze(cmd *cobra.Command, path string) error {
	verbose := a.v.GetBool(config.KeyVerbose)
	stderr := cmd.ErrOrStderr()
	outputFile := a.v.GetString(config.KeyReportOutput)

	analyzerConfig, err := config.AnalyzerConfig(a.v)
	if err != nil {
		return err
	}
	service, err := analyzer.NewService(analyzerConfig, a.log)
	if err != nil {
		return err
	}

	loc, err := config.Location(a.v)
	if err != nil {
		return err
	}
	session := analyzer.NewSession(a.log)
	session.Location = loc
	session.Banks = config.BankSelection(a.v)

	if verbose {
		fmt.Fprintf(stderr, "Analyzing %s\n", path)
		if names := session.Banks.Names(); names != nil {
			fmt.Fprintf(stderr, "Banks: %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(stderr, "Output format: %s\n", a.v.GetString(config.KeyReportFormat))
		if outputFile != "" {
			fmt.Fprintf(stderr, "Output file: %s\n", outputFile)
		}
	}

	result, err := service.AnalyzeFile(cmd.Context(), session, path)
	if err != nil {
		return err
	}

	reportConfig, err := config.ReportConfig(a.v)
	if err != nil {
		return err
	}
	if outputFile != "" {
		reportConfig.UseColors = false
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, a.log)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cmd, outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(stderr, "Kept %d of %d rows (%d dropped) in %s\n",
			result.Stats.RowsKept, result.Stats.RowsRead, result.Stats.RowsDropped, result.Duration)
		if outputFile != "" {
			fmt.Fprintf(stderr, "Report written to %s\n", outputFile)
		}
	}
	return nil
}

func formatList() string {
	names := make([]string, len(reporter.Formats))
	for i, f := range reporter.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath, nil).
			WithSuggestion(fmt.Sprintf("pass the %s itself, not its directory", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()
	return nil
}

func validateOutputPath(outputFile string) error {
	if outputFile == "" {
		return nil
	}
	dir := filepath.Dir(outputFile)
	if dir == "." {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, dir, err).
			WithSuggestion("create the output directory first")
	}
	if !info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, dir, nil)
	}
	return nil
}

// openOutput returns the named file or the command's stdout
func openOutput(cmd *cobra.Command, outputFile string) (io.Writer, func(), error) {
	if outputFile == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		code := errors.CodeDirectoryError
		if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return nil, nil, errors.FileError(code, outputFile, err)
	}
	return file, func() { file.Close() }, nil
}
