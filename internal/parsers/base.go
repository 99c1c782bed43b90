// Package parsers loads the inputs of the analyzer: CSV exports of
// SMS-derived transactions and SMS Backup XML files.
//
// CSV handling deals with the usual quirks of spreadsheet and dataframe exports:
//   - a UTF-8 byte order mark before the first header
//   - index columns and duplicate header names
//   - ragged rows (short rows are padded with nulls)
//   - files saved in Windows-1252 instead of UTF-8
//
// Empty cells are loaded as nil so downstream code can tell "no value" from
// an empty string. Reads honour context cancellation between rows.
//
// Example usage:
//
//	parser := NewDatasetParser(DefaultParseConfig(), log)
//	dataset, stats, err := parser.ParseFile(ctx, "transactions.csv")
//
//	reader := NewSMSBackupReader(time.Local, log)
//	messages, err := reader.ReadFile(ctx, "sms_backup.xml")
package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

const utf8BOM = "\ufeff"

// RecordError describes a row that could not be read
type RecordError struct {
	Line    int
	Message string
	Err     error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Encoding fallbacks accepted by ParseConfig
const (
	EncodingStrict      = "strict"
	EncodingWindows1252 = "windows-1252"
)

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune   `mapstructure:"delimiter"`
	Comment          rune   `mapstructure:"comment"`
	TrimLeadingSpace bool   `mapstructure:"trim_leading_space"`
	SkipEmptyRows    bool   `mapstructure:"skip_empty_rows"`
	MaxFieldSize     int    `mapstructure:"max_field_size"`
	EncodingFallback string `mapstructure:"encoding_fallback"`
	// EncodingProbeLines bounds how many lines are checked for valid UTF-8.
	EncodingProbeLines int `mapstructure:"encoding_probe_lines"`
	// NullValues are cell values loaded as nil. Matching is exact.
	NullValues []string `mapstructure:"null_values"`
}

// DefaultNullValues are the markers dataframe tools write for a missing value
func DefaultNullValues() []string {
	return []string{
		"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
		"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
		"n/a", "nan", "null",
	}
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:          ',',
		TrimLeadingSpace:   true,
		SkipEmptyRows:      true,
		MaxFieldSize:       1 << 20,
		EncodingFallback:   EncodingWindows1252,
		EncodingProbeLines: 1000,
		NullValues:         DefaultNullValues(),
	}
}

// Validate checks the configuration
func (c *ParseConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' || !utf8.ValidRune(c.Delimiter) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "csv.delimiter", string(c.Delimiter), nil)
	}
	if c.Comment != 0 && c.Comment == c.Delimiter {
		return errors.ConfigurationError(errors.CodeConfigConflict, "csv.comment", string(c.Comment), nil).
			WithSuggestion("the comment character must differ from the delimiter")
	}
	if c.MaxFieldSize < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "csv.max_field_size", c.MaxFieldSize, nil)
	}
	switch c.EncodingFallback {
	case "", EncodingStrict, EncodingWindows1252:
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "csv.encoding_fallback", c.EncodingFallback, nil).
			WithSuggestion("use 'strict' or 'windows-1252'")
	}
	return nil
}

// BaseParser provides common CSV reading functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig, log logger.Logger) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	l := logger.OrDefault(log).WithComponent("csv_parser")
	l.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"encoding_fallback": config.EncodingFallback,
		"max_field_size":    config.MaxFieldSize,
	}).Debug("Created base parser")

	return &BaseParser{config: config, logger: l}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	Source     string
	LineNumber int
	Headers    []string
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, source string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{Source: source, ctx: ctx}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// Err returns the cancellation cause
func (pc *ParseContext) Err() error {
	return pc.ctx.Err()
}

// OpenFile opens a file, mapping OS failures onto file errors
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open file")
		return nil, classifyOpenError(filePath, err)
	}

	info, err := file.Stat()
	if err == nil && info.IsDir() {
		file.Close()
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, fmt.Errorf("path is a directory"))
	}
	return file, nil
}

func classifyOpenError(filePath string, err error) error {
	switch {
	case os.IsNotExist(err):
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	case os.IsPermission(err):
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	default:
		return errors.FileError(errors.CodeDirectoryError, filePath, err)
	}
}

// DecodeInput returns a UTF-8 reader over r. The input is buffered so the
// first lines can be probed; invalid UTF-8 is either decoded as Windows-1252
// or rejected, depending on the configured fallback.
func (bp *BaseParser) DecodeInput(r io.Reader, source string) (io.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.FileError(errors.CodeFileCorrupted, source, err)
	}

	line, valid := bp.probeUTF8(data)
	if valid {
		return bytes.NewReader(data), "utf-8", nil
	}

	if bp.config.EncodingFallback != EncodingWindows1252 {
		bp.logger.WithFields(logger.Fields{"source": source, "line": line}).Error("Input is not valid UTF-8")
		return nil, "", errors.ParseError(errors.CodeEncodingError, source, line, "encoding",
			fmt.Errorf("invalid UTF-8 encoding detected"))
	}

	bp.logger.WithFields(logger.Fields{"source": source, "line": line}).
		Warn("Input is not valid UTF-8; decoding as Windows-1252")
	return charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(data)), EncodingWindows1252, nil
}

// probeUTF8 checks the first lines of data and returns the first bad line
func (bp *BaseParser) probeUTF8(data []byte) (int, bool) {
	limit := bp.config.EncodingProbeLines
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return lineNum, false
		}
		if limit > 0 && lineNum >= limit {
			break
		}
	}
	return 0, true
}

// NewCSVReader wraps r in a csv.Reader configured from the parse config
func (bp *BaseParser) NewCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	return reader
}

// ReadHeaders reads the header row
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext) error {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			bp.logger.WithField("source", parseCtx.Source).Error("File is empty")
			return errors.ValidationError(errors.CodeMissingField, "header", "empty", nil).
				WithSuggestion("ensure the file contains a header row followed by data rows")
		}

		bp.logger.WithError(err).Error("Failed to read header row")
		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.Source, 1, "headers", err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = CleanHeaders(headers)
	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read headers")
	return nil
}

// CleanHeaders trims names and drops a leading BOM. Blank names become
// "Unnamed: <index>" and duplicates are suffixed ".1", ".2" and so on, the way
// dataframe exports name them.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	dups := make(map[string]int)

	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Unnamed: %d", i)
		}

		name := header
		for seen[name] {
			dups[header]++
			name = fmt.Sprintf("%s.%d", header, dups[header])
		}
		seen[name] = true
		cleaned[i] = name
	}
	return cleaned
}

// ReadRecord reads the next non-empty record. It returns io.EOF at the end of input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			bp.logger.Debug("Record reading cancelled by context")
			return nil, errors.InternalError(errors.CodeCancelled, "csv_parsing", parseCtx.Err())
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			line := parseCtx.LineNumber + 1
			if perr, ok := err.(*csv.ParseError); ok {
				line = perr.Line
			}
			parseCtx.LineNumber = line
			return nil, &RecordError{Line: line, Message: "malformed CSV record", Err: err}
		}

		line, _ := reader.FieldPos(0)
		parseCtx.LineNumber = line

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			bp.logger.WithField("line_number", line).Debug("Skipping empty record")
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, &RecordError{
						Line:    line,
						Message: fmt.Sprintf("field %d exceeds maximum size of %d bytes", i, bp.config.MaxFieldSize),
					}
				}
			}
		}
		return record, nil
	}
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RaggedRows    int
	ErrorCount    int
	Errors        []*RecordError
	Decoded       string
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{Errors: make([]*RecordError, 0)}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *RecordError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d ragged), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RaggedRows, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error messages
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}
