package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/errors"
)

func TestClassify(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		message  any
		expected models.TxnType
	}{
		{"debited", "INR 500 debited from A/c XX1234", models.TxnDebit},
		{"spent", "You have spent Rs 250 at ZOMATO", models.TxnDebit},
		{"paid", "Paid Rs.99 to NETFLIX via UPI", models.TxnDebit},
		{"purchase", "Purchase of INR 1200 on card", models.TxnDebit},
		{"credited", "Rs 5000 credited to your account", models.TxnCredit},
		{"received", "Received Rs 300 from RAHUL", models.TxnCredit},
		{"upper case", "RS 10 DEBITED", models.TxnDebit},
		{"substring match", "amount prepaid", models.TxnDebit},
		{"no keyword", "Your OTP is 123456", models.TxnUnknown},
		{"empty", "", models.TxnUnknown},
		{"nil", nil, models.TxnUnknown},
		{"number", 42, models.TxnUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.message))
		})
	}
}

func TestClassify_DebitWinsWhenBothMatch(t *testing.T) {
	c := Default()

	got := c.Explain("Rs 100 debited from A/c 1 and credited to A/c 2")
	assert.Equal(t, models.TxnDebit, got.Type)
	assert.Equal(t, "debited", got.Keyword)
	assert.True(t, got.Ambiguous)

	plain := c.Explain("Rs 100 debited from A/c 1")
	assert.False(t, plain.Ambiguous)
}

func TestClassify_KeywordProperties(t *testing.T) {
	c := Default()

	for _, kw := range DefaultDebitKeywords {
		msg := "Alert: INR 10 " + kw + " today"
		assert.Equal(t, models.TxnDebit, c.Classify(msg), msg)
	}
	for _, kw := range DefaultCreditKeywords {
		msg := "Alert: INR 10 " + kw + " today"
		assert.Equal(t, models.TxnCredit, c.Classify(msg), msg)
	}
}

func TestFromKeywords(t *testing.T) {
	c, err := FromKeywords([]string{"  Withdrawn "}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.TxnDebit, c.Classify("Cash WITHDRAWN at ATM"))
	assert.Equal(t, models.TxnUnknown, c.Classify("INR 20 debited"), "custom list replaces the defaults")
	assert.Equal(t, models.TxnCredit, c.Classify("INR 20 credited"))

	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"withdrawn"}, rules[0].Keywords)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New([]Rule{{Type: models.TxnUnknown, Keywords: []string{"x"}}})
	require.Error(t, err)

	_, err = FromKeywords([]string{"ok", " "}, nil)
	require.Error(t, err)
	analyzerErr, ok := errors.AsAnalyzerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfiguration, analyzerErr.Category)
}

func TestCreditFirstTable(t *testing.T) {
	c, err := New([]Rule{
		{Type: models.TxnCredit, Keywords: []string{"credited"}},
		{Type: models.TxnDebit, Keywords: []string{"debited"}},
	})
	require.NoError(t, err)

	got := c.Explain("debited and credited")
	assert.Equal(t, models.TxnCredit, got.Type, "rule order decides precedence")
	assert.True(t, got.Ambiguous)
}
