// Package generator produces sample SMS Backup XML files with realistic bank
// alerts, for demos and end-to-end tests of the converter and analyzer.
package generator

import (
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"time"

	"sms-spend-analyzer/pkg/errors"
)

const readableDateLayout = "Jan 02, 2006 03:04:05 PM"

// Config controls sample generation
type Config struct {
	Count     int            `mapstructure:"count"`
	Seed      int64          `mapstructure:"seed"`
	End       time.Time      `mapstructure:"-"`
	Span      time.Duration  `mapstructure:"span"`
	MinAmount int            `mapstructure:"min_amount"`
	MaxAmount int            `mapstructure:"max_amount"`
	BackupSet string         `mapstructure:"backup_set"`
	Location  *time.Location `mapstructure:"-"`

	Banks      []string `mapstructure:"banks"`
	Persons    []string `mapstructure:"persons"`
	Merchants  []string `mapstructure:"merchants"`
	UPIHandles []string `mapstructure:"upi_handles"`
}

// DefaultConfig returns the stock sample: 300 messages over roughly the last five weeks
func DefaultConfig() *Config {
	return &Config{
		Count:      300,
		Seed:       time.Now().UnixNano(),
		End:        time.Now(),
		Span:       3_000_000 * time.Second,
		MinAmount:  10,
		MaxAmount:  20000,
		BackupSet:  "SAMPLE-DEMO-DATA",
		Location:   time.Local,
		Banks:      []string{"ICICIBNK", "HDFCBNK", "KOTAKBNK", "INDBNK", "SBI", "PNB", "AXISBNK"},
		Persons:    []string{"RAHUL", "BALAJI", "ANITA", "MOHIT", "NEHA", "PRAVEEN", "ARJUN"},
		Merchants:  []string{"ZOMATO", "SWIGGY", "AMAZON", "FLIPKART", "TATACLIQ", "NETFLIX", "SPOTIFY"},
		UPIHandles: []string{"ybl", "axl", "ibl", "okicici", "oksbi", "okaxis"},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Count < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "generate.count", c.Count, nil)
	}
	if c.MinAmount <= 0 || c.MaxAmount < c.MinAmount {
		return errors.ConfigurationError(errors.CodeConfigConflict, "generate.min_amount", fmt.Sprintf("%d..%d", c.MinAmount, c.MaxAmount), nil).
			WithSuggestion("use a positive minimum not larger than the maximum")
	}
	if c.Span <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "generate.span", c.Span, nil)
	}
	for name, list := range map[string][]string{
		"banks": c.Banks, "persons": c.Persons, "merchants": c.Merchants, "upi_handles": c.UPIHandles,
	} {
		if len(list) == 0 {
			return errors.ConfigurationError(errors.CodeMissingConfig, "generate."+name, nil, nil)
		}
	}
	return nil
}

// Backup is the root element of an SMS Backup file
type Backup struct {
	XMLName    xml.Name `xml:"smses"`
	Count      int      `xml:"count,attr"`
	BackupSet  string   `xml:"backup_set,attr"`
	BackupDate int64    `xml:"backup_date,attr"`
	Type       string   `xml:"type,attr"`
	Messages   []SMS    `xml:"sms"`
}

// SMS is one message element
type SMS struct {
	Protocol     string `xml:"protocol,attr"`
	Address      string `xml:"address,attr"`
	Date         int64  `xml:"date,attr"`
	Type         string `xml:"type,attr"`
	Body         string `xml:"body,attr"`
	ReadableDate string `xml:"readable_date,attr"`
	ContactName  string `xml:"contact_name,attr"`
}

// Generator creates sample backups. A Generator is not safe for concurrent use.
type Generator struct {
	config *Config
	rng    *rand.Rand
}

// New creates a Generator; a nil config uses DefaultConfig
func New(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.End.IsZero() {
		config.End = time.Now()
	}
	return &Generator{config: config, rng: rand.New(rand.NewSource(config.Seed))}, nil
}

// Generate builds a backup with Count messages
func (g *Generator) Generate() *Backup {
	backup := &Backup{
		Count:      g.config.Count,
		BackupSet:  g.config.BackupSet,
		BackupDate: g.config.End.UnixMilli(),
		Type:       "full",
		Messages:   make([]SMS, 0, g.config.Count),
	}
	for i := 0; i < g.config.Count; i++ {
		backup.Messages = append(backup.Messages, g.message())
	}
	return backup
}

func (g *Generator) message() SMS {
	endMs := g.config.End.UnixMilli()
	date := endMs - g.rng.Int63n(g.config.Span.Milliseconds()+1)
	readable := time.UnixMilli(date).In(g.config.Location).Format(readableDateLayout)

	bank := g.pick(g.config.Banks)
	amt := g.between(g.config.MinAmount, g.config.MaxAmount)
	person := g.pick(g.config.Persons)
	merchant := g.pick(g.config.Merchants)
	upi := g.pick(g.config.UPIHandles)

	var body string
	switch g.rng.Intn(6) {
	case 0:
		body = fmt.Sprintf("A/c *9745 debited Rs. %d.00 to %s via UPI:%d.%s", amt, person, g.between(100000, 999999), upi)
	case 1:
		body = fmt.Sprintf("A/c *9745 credited Rs. %d.00 from %s. UPI REF:%d", amt, person, g.between(1000000, 9999999))
	case 2:
		body = fmt.Sprintf("Payment of Rs.%d.00 to %s successful. UPI ID: 9845%d.%s", amt, merchant, g.between(1000, 9999), upi)
	case 3:
		body = fmt.Sprintf("Rs.%d received from %s. Check your passbook for balance update.", amt, person)
	case 4:
		body = "IMPORTANT: Do not share OTP, UPI PIN, or CVV with anyone."
	default:
		body = fmt.Sprintf("Recharge successful Rs.%d, enjoy data benefits.", amt)
	}

	return SMS{
		Protocol:     "0",
		Address:      fmt.Sprintf("AX-%s-S", bank),
		Date:         date,
		Type:         "1",
		Body:         body,
		ReadableDate: readable,
		ContactName:  "(Unknown)",
	}
}

func (g *Generator) pick(options []string) string {
	return options[g.rng.Intn(len(options))]
}

// between returns a uniform integer in [lo, hi]
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// WriteTo writes the backup as an XML document
func (b *Backup) WriteTo(w io.Writer) (int64, error) {
	body, err := xml.MarshalIndent(b, "", "  ")
	if err != nil {
		return 0, errors.InternalError(errors.CodeUnexpectedError, "sample_generation", err)
	}

	n, err := io.WriteString(w, xml.Header)
	if err != nil {
		return int64(n), errors.FileError(errors.CodeFilePermission, "output", err)
	}
	m, err := w.Write(append(body, '\n'))
	if err != nil {
		return int64(n + m), errors.FileError(errors.CodeFilePermission, "output", err)
	}
	return int64(n + m), nil
}
