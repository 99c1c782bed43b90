package parsers

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

// BackupDateLayout is how converted message dates are written
const BackupDateLayout = models.TimestampLayout

// SMSMessage is one <sms> element of an SMS Backup export
type SMSMessage struct {
	Line        int
	Address     string
	Body        string
	RawDate     string
	Date        *time.Time
	Kind        string
	ContactName string
}

// SMSBackupReader reads SMS Backup XML files (<smses><sms .../></smses>)
type SMSBackupReader struct {
	location *time.Location
	logger   logger.Logger
}

// NewSMSBackupReader creates a reader that renders epoch dates in loc (local time when nil)
func NewSMSBackupReader(loc *time.Location, log logger.Logger) *SMSBackupReader {
	if loc == nil {
		loc = time.Local
	}
	return &SMSBackupReader{
		location: loc,
		logger:   logger.OrDefault(log).WithComponent("sms_backup_reader"),
	}
}

// ReadFile opens and reads a backup file
func (r *SMSBackupReader) ReadFile(ctx context.Context, filePath string) ([]SMSMessage, error) {
	base := NewBaseParser(nil, r.logger)
	file, err := base.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return r.Read(ctx, file, filePath)
}

// Read decodes the backup stream. Only <sms> elements directly under the root
// element are returned, in document order.
func (r *SMSBackupReader) Read(ctx context.Context, in io.Reader, source string) ([]SMSMessage, error) {
	decoder := xml.NewDecoder(in)
	decoder.CharsetReader = charsetReader

	var messages []SMSMessage
	depth := 0
	sawRoot := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeCancelled, "sms_backup_parsing", err)
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := decoder.InputPos()
			r.logger.WithError(err).WithField("line", line).Error("Malformed SMS backup")
			return nil, errors.ParseError(errors.CodeInvalidFormat, source, line, "xml", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			sawRoot = true
			if depth == 2 && el.Name.Local == "sms" {
				line, _ := decoder.InputPos()
				messages = append(messages, r.message(el, line))
			}
		case xml.EndElement:
			depth--
		}
	}

	if !sawRoot {
		return nil, errors.ParseError(errors.CodeInvalidFormat, source, 1, "xml", fmt.Errorf("no root element"))
	}

	r.logger.WithFields(logger.Fields{
		"source":   source,
		"messages": len(messages),
	}).Info("Read SMS backup")
	return messages, nil
}

func (r *SMSBackupReader) message(el xml.StartElement, line int) SMSMessage {
	msg := SMSMessage{Line: line}
	for _, attr := range el.Attr {
		switch attr.Name.Local {
		case "address":
			msg.Address = attr.Value
		case "body":
			msg.Body = attr.Value
		case "date":
			msg.RawDate = attr.Value
		case "type":
			msg.Kind = attr.Value
		case "contact_name":
			msg.ContactName = attr.Value
		}
	}
	if t, ok := EpochMillis(msg.RawDate, r.location); ok {
		msg.Date = &t
	}
	return msg
}

// charsetReader supports the single-byte encodings some backup tools declare
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "":
		return input, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}

// EpochMillis converts a millisecond Unix timestamp string to a time in loc
func EpochMillis(raw string, loc *time.Location) (time.Time, bool) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc), true
}

// FormatDate renders the message date, or "" when the backup date was unusable
func (m SMSMessage) FormatDate() string {
	if m.Date == nil {
		return ""
	}
	return m.Date.Format(BackupDateLayout)
}

var amountRe = regexp.MustCompile(`(?i)(?:\brs\.?|\binr|₹)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// ExtractAmount finds the first currency amount in an SMS body, e.g. "Rs. 1,250.00"
func ExtractAmount(body string) (string, bool) {
	m := amountRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	return strings.ReplaceAll(m[1], ",", ""), true
}

// ConvertOptions controls ConvertBackup
type ConvertOptions struct {
	// WithAmount adds an amount column extracted from the message body.
	WithAmount bool
}

// ConvertBackup writes messages as CSV with the header date,address,message
// (plus amount when requested). It returns the number of rows written.
func ConvertBackup(ctx context.Context, messages []SMSMessage, w io.Writer, opts ConvertOptions) (int, error) {
	writer := csv.NewWriter(w)

	header := []string{"date", "address", "message"}
	if opts.WithAmount {
		header = append(header, "amount")
	}
	if err := writer.Write(header); err != nil {
		return 0, errors.FileError(errors.CodeFilePermission, "output", err)
	}

	written := 0
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return written, errors.InternalError(errors.CodeCancelled, "sms_backup_conversion", err)
		}

		row := []string{msg.FormatDate(), msg.Address, msg.Body}
		if opts.WithAmount {
			amount, _ := ExtractAmount(msg.Body)
			row = append(row, amount)
		}
		if err := writer.Write(row); err != nil {
			return written, errors.FileError(errors.CodeFilePermission, "output", err)
		}
		written++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, errors.FileError(errors.CodeFilePermission, "output", err)
	}
	return written, nil
}
