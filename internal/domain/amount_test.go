package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountParser_Parse(t *testing.T) {
	free := decimal.RequireFromString("2.0")
	parser := AmountParser{Policy: PercentPolicyReject}

	tests := []struct {
		name     string
		input    string
		expected decimal.Decimal
		err      error
	}{
		{name: "percentage of free", input: "20%", expected: decimal.RequireFromString("0.4")},
		{name: "percentage with spaces", input: " 50 % ", expected: decimal.NewFromInt(1)},
		{name: "full balance", input: "100%", expected: free},
		{name: "fractional percentage", input: "12.5%", expected: decimal.RequireFromString("0.25")},
		{name: "literal", input: "0.0023", expected: decimal.RequireFromString("0.0023")},
		{name: "literal equal to free", input: "2", expected: free},
		{name: "literal above free", input: "2.0000001", err: ErrAmountExceedsBalance},
		{name: "zero literal", input: "0", err: ErrInvalidAmount},
		{name: "negative literal", input: "-1", err: ErrInvalidAmount},
		{name: "garbage", input: "abc", err: ErrInvalidAmount},
		{name: "thousand separator", input: "1,5", err: ErrInvalidAmount},
		{name: "exponent", input: "1e-3", err: ErrInvalidAmount},
		{name: "empty", input: "", err: ErrInvalidAmount},
		{name: "zero percent", input: "0%", err: ErrInvalidAmount},
		{name: "bare percent", input: "%", err: ErrInvalidAmount},
		{name: "above hundred percent", input: "150%", err: ErrPercentTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := parser.Parse(tt.input, free)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(amount), "expected %s, got %s", tt.expected, amount)
		})
	}
}

func TestAmountParser_PercentIsExact(t *testing.T) {
	parser := AmountParser{}
	frees := []string{"0.00000001", "0.5", "1", "2.0", "123.456789", "99999.99999999"}
	percents := []string{"0.01", "1", "12.5", "33.333", "50", "99.99", "100"}

	for _, f := range frees {
		for _, p := range percents {
			free := decimal.RequireFromString(f)
			percent := decimal.RequireFromString(p)

			amount, err := parser.Parse(p+"%", free)
			require.NoError(t, err, "free=%s percent=%s", f, p)

			expected := percent.Mul(free).Shift(-2)
			assert.True(t, expected.Equal(amount), "free=%s percent=%s: expected %s, got %s", f, p, expected, amount)
			assert.True(t, amount.LessThanOrEqual(free))
		}
	}
}

func TestAmountParser_LiteralBounds(t *testing.T) {
	parser := AmountParser{}
	free := decimal.RequireFromString("0.75")

	for _, input := range []string{"0.00000001", "0.1", "0.5", "0.75", "0.75000001", "1", "0.0"} {
		a := decimal.RequireFromString(input)
		_, err := parser.Parse(input, free)
		shouldPass := a.IsPositive() && a.LessThanOrEqual(free)
		assert.Equal(t, shouldPass, err == nil, "input %s", input)
	}
}

func TestAmountParser_CapPolicy(t *testing.T) {
	parser := AmountParser{Policy: PercentPolicyCap}
	free := decimal.RequireFromString("3")

	amount, err := parser.Parse("250%", free)
	require.NoError(t, err)
	assert.True(t, free.Equal(amount))
}

func TestAmountParser_ZeroFree(t *testing.T) {
	parser := AmountParser{}

	_, err := parser.Parse("50%", decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = parser.Parse("0.1", decimal.Zero)
	require.ErrorIs(t, err, ErrAmountExceedsBalance)
}

func TestPriceParser_Parse(t *testing.T) {
	last := decimal.NewFromInt(2000)

	t.Run("unbounded", func(t *testing.T) {
		parser := PriceParser{}
		price, err := parser.Parse("2100", last)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2100).Equal(price))

		price, err = parser.Parse("999999", last)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(999999).Equal(price))
	})

	t.Run("invalid", func(t *testing.T) {
		parser := PriceParser{}
		for _, input := range []string{"", "0", "-5", "abc", "2,100"} {
			_, err := parser.Parse(input, last)
			assert.ErrorIs(t, err, ErrInvalidPrice, "input %q", input)
		}
	})

	t.Run("deviation bound", func(t *testing.T) {
		parser := PriceParser{MaxDeviationPercent: decimal.NewFromInt(50)}

		_, err := parser.Parse("3000", last)
		require.NoError(t, err)

		_, err = parser.Parse("3001", last)
		require.ErrorIs(t, err, ErrPriceOutOfBounds)

		_, err = parser.Parse("999", last)
		require.ErrorIs(t, err, ErrPriceOutOfBounds)
	})
}

func TestParsePercentPolicy(t *testing.T) {
	p, err := ParsePercentPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PercentPolicyReject, p)

	p, err = ParsePercentPolicy("CAP")
	require.NoError(t, err)
	assert.Equal(t, PercentPolicyCap, p)

	_, err = ParsePercentPolicy("clamp")
	assert.Error(t, err)
}
