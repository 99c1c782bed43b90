package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"sms-spend-analyzer/internal/generator"
	"sms-spend-analyzer/internal/reporter"
	"sms-spend-analyzer/pkg/logger"
)

const sampleExport = "Unnamed: 0,date,Bank,sender,merchant,raw_message,amount\n" +
	"0,2024-03-01 09:15:00,HDFCBNK,AX-HDFCBNK-S,ZOMATO,A/c debited Rs. 250.00 to ZOMATO,250\n" +
	"1,2024-03-02 18:00:00,SBI,AX-SBI-S,NEHA,Rs.1000 received from NEHA,1000\n" +
	"2,2024-03-03 10:00:00,SBI,AX-SBI-S,AMAZON,Spent Rs.400 at AMAZON,400\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	return NewCLIErrorHandler(logger.Discard(), false, &bytes.Buffer{}).HandleError(err)
}

func decodeJSON(t *testing.T, data string) reporter.Document {
	t.Helper()
	var doc reporter.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		t.Fatalf("output should be valid JSON: %v\n%s", err, data)
	}
	return doc
}

func TestAnalyzeCommand_Console(t *testing.T) {
	path := writeFile(t, "transactions.csv", sampleExport)

	stdout, _, err := runCommand(t, "analyze", path, "--no-color")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"SPEND ANALYSIS REPORT",
		"Total Debited (Spent):     ₹ 650.00",
		"Total Credited (Received): ₹ 1,000.00",
		"HDFCBNK",
		"AMAZON",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("console output should contain %q", want)
		}
	}
}

func TestAnalyzeCommand_BankFilter(t *testing.T) {
	path := writeFile(t, "transactions.csv", sampleExport)

	tests := []struct {
		name         string
		args         []string
		wantDebited  string
		wantCredited string
		wantCount    int
	}{
		{"all banks", nil, "650.00", "1000.00", 3},
		{"one bank", []string{"--bank", "SBI"}, "400.00", "1000.00", 2},
		{"comma separated", []string{"--bank", "SBI,HDFCBNK"}, "650.00", "1000.00", 3},
		{"empty selection", []string{"--bank="}, "650.00", "1000.00", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"analyze", path, "-f", "json"}, tt.args...)
			stdout, _, err := runCommand(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			doc := decodeJSON(t, stdout)
			if doc.Totals.TotalDebited != tt.wantDebited {
				t.Errorf("total_debited = %s, expected %s", doc.Totals.TotalDebited, tt.wantDebited)
			}
			if doc.Totals.TotalCredited != tt.wantCredited {
				t.Errorf("total_credited = %s, expected %s", doc.Totals.TotalCredited, tt.wantCredited)
			}
			if doc.Totals.Transactions != tt.wantCount {
				t.Errorf("transactions = %d, expected %d", doc.Totals.Transactions, tt.wantCount)
			}
		})
	}
}

func TestAnalyzeCommand_OutputFile(t *testing.T) {
	path := writeFile(t, "transactions.csv", sampleExport)
	out := filepath.Join(t.TempDir(), "summary.json")

	stdout, stderr, err := runCommand(t, "analyze", path, "-f", "json", "-o", out, "-v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "" {
		t.Errorf("nothing should be written to stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "Report written to "+out) {
		t.Errorf("verbose output should name the report file, got %q", stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	doc := decodeJSON(t, string(data))
	if len(doc.ByBank) != 2 {
		t.Errorf("expected 2 bank rows, got %d", len(doc.ByBank))
	}
}

func TestAnalyzeCommand_ConfigFileAndEnv(t *testing.T) {
	path := writeFile(t, "transactions.csv", "when,amt_inr,text\n"+
		"2024-03-01 09:15:00,250,debited to ZOMATO\n"+
		"2024-03-02 18:00:00,1000,received from NEHA\n")
	cfg := writeFile(t, "analyzer.yaml", "columns:\n"+
		"  amount:\n"+
		"    column: amt_inr\n"+
		"  message:\n"+
		"    column: text\n"+
		"  date:\n"+
		"    column: when\n"+
		"report:\n"+
		"  format: json\n")

	stdout, _, err := runCommand(t, "analyze", path, "--config", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := decodeJSON(t, stdout)
	if doc.Totals.TotalDebited != "250.00" || doc.Totals.TotalCredited != "1000.00" {
		t.Errorf("unexpected totals: %+v", doc.Totals)
	}
	if doc.Columns["amount"] != "amt_inr" {
		t.Errorf("amount should resolve to amt_inr, got %v", doc.Columns)
	}

	t.Setenv("ANALYZER_REPORT_FORMAT", "yaml")
	stdout, _, err = runCommand(t, "analyze", path, "--config", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var yamlDoc reporter.Document
	if err := yaml.Unmarshal([]byte(stdout), &yamlDoc); err != nil {
		t.Fatalf("environment should switch the format to YAML: %v", err)
	}
	if yamlDoc.Totals.TotalDebited != "250.00" {
		t.Errorf("unexpected YAML totals: %+v", yamlDoc.Totals)
	}
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	valid := writeFile(t, "transactions.csv", sampleExport)
	noAmount := writeFile(t, "no_amount.csv", "date,raw_message\n2024-03-01,debited\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "missing.csv")}, 2},
		{"directory", []string{"analyze", t.TempDir()}, 2},
		{"invalid format", []string{"analyze", valid, "-f", "xml"}, 4},
		{"negative top", []string{"analyze", valid, "--top=-1"}, 4},
		{"bad timezone", []string{"analyze", valid, "--timezone", "Mars/Olympus"}, 4},
		{"missing output directory", []string{"analyze", valid, "-o", filepath.Join(t.TempDir(), "nope", "out.txt")}, 2},
		{"missing column", []string{"analyze", noAmount}, 4},
		{"missing config file", []string{"analyze", valid, "--config", filepath.Join(t.TempDir(), "none.yaml")}, 4},
		{"no arguments", []string{"analyze"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error but got none")
			}
			if code := exitCode(err); code != tt.wantCode {
				t.Errorf("exit code = %d, expected %d (%v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestGenerateConvertAnalyzePipeline(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "backup.xml")
	csvPath := filepath.Join(dir, "messages.csv")

	if _, _, err := runCommand(t, "generate", "-n", "60", "--seed", "7", "-o", xmlPath); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, _, err := runCommand(t, "convert", xmlPath, "--with-amount", "-o", csvPath); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("converted file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "date,address,message,amount" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if len(lines) != 61 {
		t.Errorf("expected 60 rows plus header, got %d lines", len(lines))
	}

	stdout, _, err := runCommand(t, "analyze", csvPath, "-f", "json")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	doc := decodeJSON(t, stdout)
	if doc.Totals.Transactions == 0 || doc.Totals.Transactions >= 60 {
		t.Errorf("OTP messages should be dropped and the rest kept, got %d transactions", doc.Totals.Transactions)
	}
	if doc.Columns["sender"] != "address" {
		t.Errorf("sender should resolve to the address column, got %v", doc.Columns)
	}
}

func TestGenerateCommand_Deterministic(t *testing.T) {
	first, _, err := runCommand(t, "generate", "-n", "10", "--seed", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := runCommand(t, "generate", "-n", "10", "--seed", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var a, b generator.Backup
	if err := xml.Unmarshal([]byte(first), &a); err != nil {
		t.Fatalf("output should be valid XML: %v", err)
	}
	if err := xml.Unmarshal([]byte(second), &b); err != nil {
		t.Fatalf("output should be valid XML: %v", err)
	}
	if len(a.Messages) != 10 || len(b.Messages) != 10 {
		t.Fatalf("expected 10 messages per run, got %d and %d", len(a.Messages), len(b.Messages))
	}
	// dates follow the clock, bodies follow the seed
	for i := range a.Messages {
		if a.Messages[i].Body != b.Messages[i].Body || a.Messages[i].Address != b.Messages[i].Address {
			t.Errorf("message %d differs between runs with the same seed", i)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(stdout, "analyzer dev") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}
