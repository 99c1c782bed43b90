package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-spend-analyzer/internal/models"
	"sms-spend-analyzer/pkg/logger"
)

func tx(amount string, txType models.TxnType, counterparty string, bank string, date string) models.NormalizedTransaction {
	var bankPtr *string
	if bank != "" {
		bankPtr = &bank
	}
	var ts *time.Time
	if date != "" {
		t, ok := models.ParseTimestamp(date, time.UTC)
		if !ok {
			panic("bad test date " + date)
		}
		ts = &t
	}
	return models.NewNormalizedTransaction(0, decimal.RequireFromString(amount), txType, counterparty, bankPtr, ts, "")
}

func sampleTransactions() []models.NormalizedTransaction {
	return []models.NormalizedTransaction{
		tx("100", models.TxnDebit, "ZOMATO", "HDFC", "2024-01-05 10:00"),
		tx("250.50", models.TxnDebit, "AMAZON", "ICICI", "2024-01-04 09:00"),
		tx("40", models.TxnDebit, "ZOMATO", "", "2024-01-05 21:15"),
		tx("1000", models.TxnCredit, "RAHUL", "HDFC", "2024-01-06 12:00"),
		tx("75", models.TxnCredit, "NEHA", "", ""),
		tx("5", models.TxnUnknown, "OTP", "SBI", "2024-01-05 08:00"),
	}
}

func TestGrandTotals(t *testing.T) {
	e := NewEngine(logger.Discard())

	debit, credit := e.GrandTotals(sampleTransactions())
	assert.Equal(t, "390.5", debit.String())
	assert.Equal(t, "1075", credit.String())

	debit, credit = e.GrandTotals(nil)
	assert.True(t, debit.IsZero())
	assert.True(t, credit.IsZero())
}

func TestByBank(t *testing.T) {
	e := NewEngine(logger.Discard())
	banks := e.ByBank(sampleTransactions())

	require.Len(t, banks, 4)
	assert.Equal(t, []string{"HDFC", "ICICI", "SBI", UnbucketedLabel}, []string{banks[0].Bank, banks[1].Bank, banks[2].Bank, banks[3].Bank})

	assert.Equal(t, "100", banks[0].Debit.String())
	assert.Equal(t, "1000", banks[0].Credit.String())
	assert.True(t, banks[1].Credit.IsZero(), "missing direction sums to zero")
	assert.True(t, banks[2].Debit.IsZero())
	assert.True(t, banks[2].Credit.IsZero())
	assert.Equal(t, 1, banks[2].Count)

	assert.True(t, banks[3].Unbucketed)
	assert.Equal(t, "40", banks[3].Debit.String())
	assert.Equal(t, "75", banks[3].Credit.String())
}

func TestByBank_SumMatchesGrandTotal(t *testing.T) {
	e := NewEngine(logger.Discard())
	txs := sampleTransactions()

	debit, credit := e.GrandTotals(txs)
	sumDebit, sumCredit := decimal.Zero, decimal.Zero
	for _, b := range e.ByBank(txs) {
		sumDebit = sumDebit.Add(b.Debit)
		sumCredit = sumCredit.Add(b.Credit)
	}

	assert.True(t, debit.Equal(sumDebit), "per-bank debits %s != grand total %s", sumDebit, debit)
	assert.True(t, credit.Equal(sumCredit), "per-bank credits %s != grand total %s", sumCredit, credit)
}

func TestByCounterparty(t *testing.T) {
	e := NewEngine(logger.Discard())
	txs := append(sampleTransactions(), tx("140", models.TxnDebit, "ANITA", "HDFC", ""))

	debits := e.ByCounterparty(txs, models.TxnDebit)
	require.Len(t, debits, 3)
	assert.Equal(t, "AMAZON", debits[0].Key)
	assert.Equal(t, "250.5", debits[0].Total.String())
	assert.Equal(t, "ANITA", debits[1].Key, "ties are ordered by name")
	assert.Equal(t, "ZOMATO", debits[2].Key)
	assert.Equal(t, "140", debits[2].Total.String())
	assert.Equal(t, 2, debits[2].Count)

	credits := e.ByCounterparty(txs, models.TxnCredit)
	require.Len(t, credits, 2)
	assert.Equal(t, "RAHUL", credits[0].Key)
}

func TestByCounterparty_EmptySubset(t *testing.T) {
	e := NewEngine(logger.Discard())
	onlyCredits := []models.NormalizedTransaction{tx("10", models.TxnCredit, "X", "", "")}

	got := e.ByCounterparty(onlyCredits, models.TxnDebit)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, e.ByDate(onlyCredits, models.TxnDebit))
	assert.Empty(t, e.ByBank(nil))
}

func TestByDate(t *testing.T) {
	e := NewEngine(logger.Discard())

	debits := e.ByDate(sampleTransactions(), models.TxnDebit)
	require.Len(t, debits, 2)
	assert.Equal(t, "2024-01-04", debits[0].Day())
	assert.Equal(t, "2024-01-05", debits[1].Day())
	assert.Equal(t, "140", debits[1].Total.String())

	credits := e.ByDate(sampleTransactions(), models.TxnCredit)
	require.Len(t, credits, 1, "undated records are left out of daily totals")
	assert.Equal(t, "2024-01-06", credits[0].Day())
}

func TestSummarize_OrderIndependent(t *testing.T) {
	e := NewEngine(logger.Discard())
	txs := sampleTransactions()
	want := e.Summarize(txs)

	shuffled := append([]models.NormalizedTransaction(nil), txs...)
	r := rand.New(rand.NewSource(7))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assert.Equal(t, want, e.Summarize(shuffled))
}

func TestSummary_Lookups(t *testing.T) {
	s := NewEngine(logger.Discard()).Summarize(sampleTransactions())

	hdfc, ok := s.Bank("HDFC")
	require.True(t, ok)
	assert.Equal(t, 2, hdfc.Count)

	_, ok = s.Bank(UnbucketedLabel)
	assert.False(t, ok, "unbucketed group is not addressable as a bank")

	none, ok := s.Unbucketed()
	require.True(t, ok)
	assert.Equal(t, 2, none.Count)
	assert.True(t, s.HasDates())
	assert.Equal(t, 6, s.TransactionCount)
}

func TestBanks(t *testing.T) {
	assert.Equal(t, []string{"HDFC", "ICICI", "SBI"}, Banks(sampleTransactions()))
	assert.Empty(t, Banks(nil))
}
