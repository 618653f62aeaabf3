package core_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    core.Amount
		wantErr bool
	}{
		{in: "50", want: 50 * core.AmountScale},
		{in: "25.5", want: 255_000_000},
		{in: "0.1", want: 1_000_000},
		{in: "0.0000001", want: 1},
		{in: ".5", want: 5_000_000},
		{in: "-3.25", want: -32_500_000},
		{in: "0.00000001", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "", wantErr: true},
		{in: "-", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := core.ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "50", (50 * core.AmountScale).String())
	assert.Equal(t, "25.5", core.MustParseAmount("25.5").String())
	assert.Equal(t, "0.0000001", core.Amount(1).String())
	assert.Equal(t, "-3.25", core.MustParseAmount("-3.25").String())
	assert.Equal(t, "0", core.Amount(0).String())
}

func TestAmount_SumsExactly(t *testing.T) {
	// 0.1 + 0.2 drifts in binary floating point.
	sum := core.MustParseAmount("0.1") + core.MustParseAmount("0.2")
	assert.Equal(t, core.MustParseAmount("0.3"), sum)
	assert.Equal(t, "0.3", sum.String())
}

func TestAmount_JSON(t *testing.T) {
	var v struct {
		A core.Amount `json:"a"`
		B core.Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"15.5","b":10.25}`), &v))
	assert.Equal(t, core.MustParseAmount("15.5"), v.A)
	assert.Equal(t, core.MustParseAmount("10.25"), v.B)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"15.5","b":"10.25"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"ten"}`), &v))
}
