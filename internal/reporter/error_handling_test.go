package reporter

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-spend-analyzer/pkg/logger"
)

// flakyWriter fails its first write and then behaves like a buffer
type flakyWriter struct {
	bytes.Buffer
	failed bool
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("transient write failure")
	}
	return w.Buffer.Write(p)
}

func TestGenerateReportSafely(t *testing.T) {
	result := createSampleResult(t)

	srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.Discard())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, srg.GenerateReportSafely(result, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestGenerateReportSafely_FormatFallback(t *testing.T) {
	result := createSampleResult(t)

	srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.Discard())
	require.NoError(t, err)

	w := &flakyWriter{}
	require.NoError(t, srg.GenerateReportSafely(result, w))

	output := w.String()
	assert.Contains(t, output, "NOTE: Report generated in console format")
	assert.Contains(t, output, "SPEND ANALYSIS REPORT")
	assert.NotContains(t, output, "\x1b[", "fallback output is uncolored")
}

func TestGenerateReportSafely_InvalidInputs(t *testing.T) {
	srg, err := NewSafeReportGenerator(nil, logger.Discard())
	require.NoError(t, err)

	assert.Error(t, srg.GenerateReportSafely(nil, &bytes.Buffer{}))
	assert.Error(t, srg.GenerateReportSafely(createSampleResult(t), nil))
}

func TestBackupPathFor(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{filepath.Join("out", "report.json"), filepath.Join("out", "report_backup.json")},
		{"summary", "summary_backup"},
		{filepath.Join("a", "b.c", "report.tar.gz"), filepath.Join("a", "b.c", "report.tar_backup.gz")},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backupPathFor(tt.in))
	}
}

func TestIsSpaceError(t *testing.T) {
	assert.True(t, isSpaceError(errors.New("write /tmp/x: No space left on device")))
	assert.False(t, isSpaceError(errors.New("permission denied")))
	assert.False(t, isSpaceError(nil))
}
