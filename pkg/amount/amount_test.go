package amount

import (
	"math"
	"math/rand"
	"testing"

	"wallet-psbt/pkg/errno"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    int64
	}{
		{"one and a half", "1.5", 150000000},
		{"one coin", "1", 100000000},
		{"smallest unit", "0.00000001", 1},
		{"below resolution rounds down", "0.000000019", 1},
		{"rounds down never up", "0.123456789", 12345678},
		{"zero", "0", 0},
		{"float-hostile value", "0.3", 30000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.display))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBaseUnitsRejectsNegative(t *testing.T) {
	_, err := ToBaseUnits(decimal.RequireFromString("-0.1"))
	assert.ErrorIs(t, err, errno.InvalidAmount)
}

func TestToBaseUnitsRejectsOverflow(t *testing.T) {
	_, err := ToBaseUnits(decimal.RequireFromString("100000000000000000000"))
	assert.ErrorIs(t, err, errno.InvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	values := []int64{0, 1, 7, 99, 100000000, 150000000, 2100000000000000, math.MaxInt64}
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		values = append(values, r.Int63())
	}

	for _, b := range values {
		got, err := ToBaseUnits(ToDisplay(b))
		require.NoError(t, err)
		require.Equal(t, b, got, "round trip of %d", b)
	}
}

func TestCeilBaseUnits(t *testing.T) {
	got, err := CeilBaseUnits(decimal.RequireFromString("1000"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)

	got, err = CeilBaseUnits(decimal.RequireFromString("1000.01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1001), got)

	got, err = CeilBaseUnits(decimal.RequireFromString("0.2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = CeilBaseUnits(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, errno.InvalidAmount)
}

func TestParseAndFormatDisplay(t *testing.T) {
	b, err := ParseDisplay("0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000000), b)
	assert.Equal(t, "0.10000000", FormatDisplay(b))
	assert.Equal(t, "1.00000000", FormatDisplay(100000000))

	_, err = ParseDisplay("abc")
	assert.ErrorIs(t, err, errno.InvalidAmount)
}
