package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		verbose  bool
		wantCode int
		want     []string
		notWant  []string
	}{
		{
			name:     "nil error",
			err:      nil,
			wantCode: 0,
		},
		{
			name:     "missing columns",
			err:      errors.MissingFieldsError([]string{"raw_message", "amount"}, []string{"date", "Bank"}),
			wantCode: 4,
			want: []string{
				"Error: missing required columns: amount, raw_message",
				"Missing fields:\n  - amount\n  - raw_message",
				"available_columns: [date Bank]",
				"Configuration error help:",
			},
			notWant: []string{"missing_fields:"},
		},
		{
			name:     "file not found",
			err:      errors.FileError(errors.CodeFileNotFound, "tx.csv", os.ErrNotExist),
			wantCode: 2,
			want:     []string{"Error: file not found: tx.csv", "file_path: tx.csv", "File error help:"},
			notWant:  []string{"Underlying error"},
		},
		{
			name:     "verbose shows cause",
			err:      errors.FileError(errors.CodeFileNotFound, "tx.csv", os.ErrNotExist),
			verbose:  true,
			wantCode: 2,
			want:     []string{"Underlying error: file does not exist"},
		},
		{
			name:     "report error",
			err:      errors.ReportError("yaml", fmt.Errorf("broken pipe")),
			wantCode: 5,
			want:     []string{"Report error help:"},
		},
		{
			name:     "wrapped analyzer error",
			err:      fmt.Errorf("analyze: %w", errors.ConfigurationError(errors.CodeInvalidConfig, "timezone", "Mars", nil)),
			wantCode: 4,
			want:     []string{"timezone"},
		},
		{
			name:     "plain not-exist error",
			err:      fmt.Errorf("open x: %w", os.ErrNotExist),
			wantCode: 2,
			want:     []string{"Error: File not found"},
		},
		{
			name:     "plain permission error",
			err:      fmt.Errorf("open x: %w", os.ErrPermission),
			wantCode: 2,
			want:     []string{"Error: Permission denied"},
		},
		{
			name:     "disk full",
			err:      fmt.Errorf("write out.json: no space left on device"),
			wantCode: 2,
			want:     []string{"Insufficient disk space"},
		},
		{
			name:     "generic",
			err:      fmt.Errorf(`unknown flag: --frobnicate`),
			wantCode: 1,
			want:     []string{"Error: unknown flag: --frobnicate", "--verbose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := NewCLIErrorHandler(logger.Discard(), tt.verbose, &out)

			if code := handler.HandleError(tt.err); code != tt.wantCode {
				t.Errorf("exit code = %d, expected %d", code, tt.wantCode)
			}

			output := out.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got:\n%s", want, output)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(output, notWant) {
					t.Errorf("output should not contain %q, got:\n%s", notWant, output)
				}
			}
		})
	}
}
