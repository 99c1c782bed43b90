package parsers

import (
	"context"
	"io"
	"strings"
	"time"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

// DatasetParser loads a CSV export into a models.Dataset
type DatasetParser struct {
	*BaseParser
	logger logger.Logger
	nulls  map[string]struct{}
}

// NewDatasetParser creates a DatasetParser. A nil config uses DefaultParseConfig.
func NewDatasetParser(config *ParseConfig, log logger.Logger) (*DatasetParser, error) {
	if config == nil {
		config = DefaultParseConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	nulls := make(map[string]struct{}, len(config.NullValues))
	for _, v := range config.NullValues {
		nulls[v] = struct{}{}
	}

	return &DatasetParser{
		BaseParser: NewBaseParser(config, log),
		logger:     logger.OrDefault(log).WithComponent("dataset_parser"),
		nulls:      nulls,
	}, nil
}

// ParseFile opens filePath and parses it
func (dp *DatasetParser) ParseFile(ctx context.Context, filePath string) (*models.Dataset, *ParseStats, error) {
	file, err := dp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return dp.Parse(ctx, file, filePath)
}

// Parse reads a CSV stream. Malformed rows are recorded in the stats and
// skipped; only unreadable input, a missing header or cancellation fail the call.
func (dp *DatasetParser) Parse(ctx context.Context, r io.Reader, source string) (*models.Dataset, *ParseStats, error) {
	dp.logger.WithFields(logger.Fields{
		"source":    source,
		"operation": "parse_dataset",
	}).Info("Starting dataset parsing")

	stats := NewParseStats()
	decoded, encoding, err := dp.DecodeInput(r, source)
	if err != nil {
		return nil, stats, err
	}
	stats.Decoded = encoding

	reader := dp.NewCSVReader(decoded)
	parseCtx := NewParseContext(ctx, source)

	if err := dp.ReadHeaders(reader, parseCtx); err != nil {
		if analyzerErr, ok := errors.AsAnalyzerError(err); ok {
			analyzerErr.WithContext("file", source)
		}
		return nil, stats, err
	}

	dataset := &models.Dataset{Source: source, Headers: parseCtx.Headers}
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "parse_dataset",
		LogInterval: 5 * time.Second,
		Logger:      dp.logger,
	})

	for {
		record, err := dp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			if recErr, ok := err.(*RecordError); ok {
				dp.logger.WithError(recErr).WithField("line_number", recErr.Line).Warn("Skipping unreadable record")
				stats.AddError(recErr)
				continue
			}
			dp.logger.WithError(err).Warn("Dataset parsing was cancelled")
			return nil, stats, err
		}

		stats.RecordsParsed++
		if len(record) != len(parseCtx.Headers) {
			stats.RaggedRows++
		}
		dataset.Rows = append(dataset.Rows, models.Row{
			Line:   parseCtx.LineNumber,
			Values: toRawRecord(parseCtx.Headers, record, dp.nulls),
		})
		progress.Increment()
	}

	progress.Complete()
	stats.TotalLines = parseCtx.LineNumber

	dp.logger.WithFields(logger.Fields{
		"source":         source,
		"encoding":       stats.Decoded,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"ragged_rows":    stats.RaggedRows,
		"error_count":    stats.ErrorCount,
	}).Info("Dataset parsing completed")

	if stats.HasErrors() {
		dp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return dataset, stats, nil
}

// toRawRecord maps a CSV row onto the header. Blank cells, null markers and
// cells missing from short rows become nil; cells beyond the header are dropped.
func toRawRecord(headers []string, record []string, nulls map[string]struct{}) models.RawRecord {
	raw := make(models.RawRecord, len(headers))
	for i, h := range headers {
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			raw[h] = nil
			continue
		}
		if _, null := nulls[record[i]]; null {
			raw[h] = nil
			continue
		}
		raw[h] = record[i]
	}
	return raw
}
