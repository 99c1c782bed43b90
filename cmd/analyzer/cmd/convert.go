package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sms-spend-analyzer/cmd/analyzer/config"
	"sms-spend-analyzer/internal/parsers"
)

const (
	keyConvertOutput     = "convert.output"
	keyConvertWithAmount = "convert.with_amount"
)

func newConvertCommand(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "convert <backup.xml>",
		Short: "Convert an SMS backup XML file to CSV",
		Long: `Convert reads an "SMS Backup & Restore" XML export and writes one CSV row
per message with the columns date, address and message. The epoch
millisecond date is rendered as "YYYY-MM-DD HH:MM:SS" in --timezone.

With --with-amount an extra amount column holds the first rupee amount
found in the body (Rs, INR or ₹ followed by a number). The result can be
passed straight to 'analyzer analyze'.

Examples:
  analyzer convert sms-backup.xml -o messages.csv
  analyzer convert sms-backup.xml --with-amount --timezone Asia/Kolkata`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{
				"output":      keyConvertOutput,
				"with-amount": keyConvertWithAmount,
				"timezone":    config.KeyTimezone,
			}); err != nil {
				return err
			}
			if err := validateFileExists(args[0], "backup file"); err != nil {
				return err
			}
			return validateOutputPath(a.v.GetString(keyConvertOutput))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd, args[0])
		},
	}

	flags := c.Flags()
	flags.StringP("output", "o", "", "CSV output path (default: stdout)")
	flags.Bool("with-amount", false, "add an amount column extracted from the message body")
	flags.String("timezone", "UTC", "zone the message dates are rendered in")
	return c
}

func (a *app) runConvert(cmd *cobra.Command, path string) error {
	loc, err := config.Location(a.v)
	if err != nil {
		return err
	}

	messages, err := parsers.NewSMSBackupReader(loc, a.log).ReadFile(cmd.Context(), path)
	if err != nil {
		return err
	}

	outputFile := a.v.GetString(keyConvertOutput)
	output, closeOutput, err := openOutput(cmd, outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	written, err := parsers.ConvertBackup(cmd.Context(), messages, output, parsers.ConvertOptions{
		WithAmount: a.v.GetBool(keyConvertWithAmount),
	})
	if err != nil {
		return err
	}

	if a.v.GetBool(config.KeyVerbose) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Converted %d messages from %s\n", written, path)
		if outputFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "CSV written to %s\n", outputFile)
		}
	}
	return nil
}
