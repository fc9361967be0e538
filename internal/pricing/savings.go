package pricing

import "github.com/shopspring/decimal"

// Summary aggregates priced lines. It is the single shape used for a
// participant's cart and for a whole group order.
type Summary struct {
	TotalAmount    decimal.Decimal
	BaseTotal      decimal.Decimal
	SavingsAmount  decimal.Decimal
	SavingsPercent decimal.Decimal
	LineCount      int
}

// SummarizeLines folds line quotes into a participant summary. Savings are the
// sum of line savings and are reported as-is, negative values included.
func SummarizeLines(lines []LineQuote) Summary {
	summary := Summary{
		TotalAmount:   decimal.Zero,
		BaseTotal:     decimal.Zero,
		SavingsAmount: decimal.Zero,
	}
	for _, line := range lines {
		summary.TotalAmount = summary.TotalAmount.Add(line.LineTotal)
		summary.BaseTotal = summary.BaseTotal.Add(line.BaseTotal)
		summary.SavingsAmount = summary.SavingsAmount.Add(line.SavingsAmount)
		summary.LineCount++
	}
	summary.SavingsPercent = SavingsPercent(summary.SavingsAmount, summary.BaseTotal)
	return summary
}

// SummarizeParticipations folds participant summaries into an order summary.
// The result is always a fresh sum; callers never adjust a stored total.
func SummarizeParticipations(participations []Summary) Summary {
	summary := Summary{
		TotalAmount:   decimal.Zero,
		BaseTotal:     decimal.Zero,
		SavingsAmount: decimal.Zero,
	}
	for _, p := range participations {
		summary.TotalAmount = summary.TotalAmount.Add(p.TotalAmount)
		summary.BaseTotal = summary.BaseTotal.Add(p.BaseTotal)
		summary.SavingsAmount = summary.SavingsAmount.Add(p.SavingsAmount)
		summary.LineCount += p.LineCount
	}
	summary.SavingsPercent = SavingsPercent(summary.SavingsAmount, summary.BaseTotal)
	return summary
}

// FormatMoney renders a monetary value with two decimals for display.
func FormatMoney(value decimal.Decimal) string {
	return value.StringFixed(MoneyScale)
}

// FormatPercent renders a percentage with one decimal for display.
func FormatPercent(value decimal.Decimal) string {
	return value.StringFixed(1)
}
