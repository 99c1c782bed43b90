package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

// CLIErrorHandler turns errors into user-facing messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a handler that writes to out (stderr when nil)
func NewCLIErrorHandler(log logger.Logger, verbose bool, out io.Writer) *CLIErrorHandler {
	if out == nil {
		out = os.Stderr
	}
	return &CLIErrorHandler{
		logger:  logger.OrDefault(log).WithComponent("cli"),
		verbose: verbose,
		out:     out,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if analyzerErr, ok := errors.AsAnalyzerError(err); ok {
		return h.handleAnalyzerError(analyzerErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAnalyzerError(err *errors.AnalyzerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	fields, missing := errors.MissingFieldNames(err)
	if missing {
		fmt.Fprintf(h.out, "\nMissing fields:\n")
		for _, f := range fields {
			fmt.Fprintf(h.out, "  - %s\n", f)
		}
	}

	keys := make([]string, 0, len(err.Context))
	for key := range err.Context {
		if missing && key == "missing_fields" {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more detail\n")
	}
	return 1
}

func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the file exists and is readable
• Verify the path (use an absolute path if needed)
• Ensure you have permission to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the export is a CSV file with a header row
• Check the delimiter and quoting (see csv.delimiter in the config file)
• Files that are not UTF-8 are read as Windows-1252 unless csv.encoding_fallback is 'strict'`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that required values are present
• Amounts may use thousands separators but no currency words`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify the config file passed with --config
• Map renamed columns under 'columns.<field>.column' or '.aliases'
• Use 'analyzer analyze --help' to see all options`

	case errors.CategoryReport:
		return `Report error help:
• Try a different --output-format
• Check that the output location is writable`

	default:
		return `For more help:
• Use 'analyzer --help' for general help
• Run the command again with --verbose`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
