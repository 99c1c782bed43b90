// Package classifier infers the direction of a transaction from the free text
// of its SMS body.
//
// Classification is a fixed, ordered rule table. Each rule pairs a direction
// with a keyword set; the message is lower-cased and every rule is checked in
// order with a substring match. The first rule with a matching keyword decides
// the direction. With the default table the debit rule comes before the credit
// rule, so a message that mentions both ("debited ... credited") is a debit.
// Such messages are flagged as ambiguous so callers can count them.
package classifier

import (
	"fmt"
	"strings"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/errors"
)

// Rule maps a keyword set to a direction
type Rule struct {
	Type     models.TxnType `json:"type" mapstructure:"type"`
	Keywords []string       `json:"keywords" mapstructure:"keywords"`
}

// DefaultDebitKeywords are the message fragments that mark money leaving the account
var DefaultDebitKeywords = []string{"debited", "spent", "paid", "purchase"}

// DefaultCreditKeywords are the message fragments that mark money entering the account
var DefaultCreditKeywords = []string{"credited", "received"}

// DefaultRules returns the rule table with debit checked before credit
func DefaultRules() []Rule {
	return []Rule{
		{Type: models.TxnDebit, Keywords: append([]string(nil), DefaultDebitKeywords...)},
		{Type: models.TxnCredit, Keywords: append([]string(nil), DefaultCreditKeywords...)},
	}
}

// Classification is the detailed outcome of classifying one message
type Classification struct {
	Type models.TxnType
	// Keyword is the keyword of the deciding rule, empty when nothing matched.
	Keyword string
	// Ambiguous is set when a later rule with a different direction also matched.
	Ambiguous bool
}

// Classifier applies an ordered rule table to message text
type Classifier struct {
	rules []Rule
}

// New creates a classifier from an ordered rule table. Keywords are matched
// case-insensitively; blank keywords are rejected since they would match every message.
func New(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "keywords", nil, nil)
	}

	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if rule.Type != models.TxnDebit && rule.Type != models.TxnCredit {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
				fmt.Sprintf("keywords[%d].type", i), rule.Type, nil)
		}

		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
					fmt.Sprintf("keywords.%s", rule.Type), rule.Keywords, nil).
					WithSuggestion("remove empty keywords; an empty keyword matches every message")
			}
			keywords = append(keywords, kw)
		}
		compiled = append(compiled, Rule{Type: rule.Type, Keywords: keywords})
	}

	return &Classifier{rules: compiled}, nil
}

// FromKeywords builds the two-rule table (debit first) from keyword lists,
// falling back to the defaults for an empty list.
func FromKeywords(debit, credit []string) (*Classifier, error) {
	if len(debit) == 0 {
		debit = DefaultDebitKeywords
	}
	if len(credit) == 0 {
		credit = DefaultCreditKeywords
	}
	return New([]Rule{
		{Type: models.TxnDebit, Keywords: debit},
		{Type: models.TxnCredit, Keywords: credit},
	})
}

// Default returns a classifier over DefaultRules
func Default() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns a copy of the compiled rule table
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Type: r.Type, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Classify returns the direction of message. Absent, empty and non-string
// messages are unknown.
func (c *Classifier) Classify(message any) models.TxnType {
	return c.Explain(message).Type
}

// Explain classifies message and reports which keyword decided it
func (c *Classifier) Explain(message any) Classification {
	text, ok := message.(string)
	if !ok || text == "" {
		return Classification{Type: models.TxnUnknown}
	}
	text = strings.ToLower(text)

	result := Classification{Type: models.TxnUnknown}
	decided := false
	for _, rule := range c.rules {
		kw, hit := firstMatch(text, rule.Keywords)
		if !hit {
			continue
		}
		if !decided {
			result.Type = rule.Type
			result.Keyword = kw
			decided = true
			continue
		}
		if rule.Type != result.Type {
			result.Ambiguous = true
			break
		}
	}
	return result
}

func firstMatch(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
