package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"0", 0, true},
		{"0.00", 0, true},
		{"12.34", 1234, true},
		{"100", 10000, true},
		{"0.05", 5, true},
		{"-3.50", -350, true},
		{"12.345", 0, false},
		{"abc", 0, false},
		{"12,34", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		m, err := ParseMoney(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.cents, m.Cents(), tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestParseNonNegativeMoney(t *testing.T) {
	_, err := ParseNonNegativeMoney("-1.00")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	m, err := ParseNonNegativeMoney("1.00")
	require.NoError(t, err)
	assert.Equal(t, int64(100), m.Cents())
}

func TestMoneyCheckedArithmetic(t *testing.T) {
	t.Run("Sub", func(t *testing.T) {
		m, ok := Money(1000).Sub(Money(300))
		require.True(t, ok)
		assert.Equal(t, Money(700), m)

		_, ok = Money(100).Sub(Money(101))
		assert.False(t, ok)
	})

	t.Run("Add", func(t *testing.T) {
		m, ok := Money(1).Add(Money(2))
		require.True(t, ok)
		assert.Equal(t, Money(3), m)

		_, ok = Money(1<<62).Add(Money(1 << 62))
		assert.False(t, ok)
	})
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "12.34", Money(1234).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "0.00", Money(0).String())
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "0.05", "12.34", "99999.99"} {
		m, err := ParseMoney(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}
}
