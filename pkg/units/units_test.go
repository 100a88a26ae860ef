package units

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "250", want: "250"},
		{name: "fraction", input: "12.75", want: "12.75"},
		{name: "negative", input: "-3.5", want: "-3.5"},
		{name: "empty", input: "", wantErr: true},
		{name: "text", input: "abc", wantErr: true},
		{name: "nan", input: "NaN", wantErr: true},
		{name: "infinity", input: "Infinity", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidNumber))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("100.5")
	b := MustParse("90.25")

	assert.Equal(t, 0, a.Sub(b).Cmp(MustParse("10.25")))
	assert.Equal(t, 0, a.Add(b).Cmp(MustParse("190.75")))
	assert.Equal(t, -1, b.Sub(a).Sign())
	assert.Equal(t, 0, FromInt(60).DivInt(2).Cmp(FromInt(30)))
	assert.True(t, FromInt(5).DivInt(0).IsZero())
	assert.True(t, Zero().IsZero())
	assert.Equal(t, 0, Sum(FromInt(1), FromInt(2), MustParse("0.5")).Cmp(MustParse("3.5")))
}

func TestDivIsReduced(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want string
	}{
		{name: "exact", a: FromInt(100), b: FromInt(2), want: "50"},
		{name: "negative", a: FromInt(-100), b: FromInt(2), want: "-50"},
		{name: "trailing zeros", a: MustParse("7.50"), b: FromInt(3), want: "2.5"},
		{name: "repeating", a: FromInt(50), b: FromInt(3), want: "16.666666666667"},
		{name: "fraction divisor", a: FromInt(1), b: MustParse("0.25"), want: "4"},
		{name: "zero dividend", a: Zero(), b: FromInt(7), want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Div(tt.b).String())
		})
	}

	assert.Equal(t, "16.666666666667", FromInt(50).DivInt(3).String())
}

func TestRound(t *testing.T) {
	third := FromInt(10).DivInt(3)

	assert.Equal(t, "3.33", third.StringFixed(2))
	assert.Equal(t, "30.00", FromInt(30).StringFixed(2))
	assert.Equal(t, "2.68", MustParse("2.675").StringFixed(2))
}

func TestJSON(t *testing.T) {
	type record struct {
		Value *Value `json:"value"`
	}

	t.Run("number", func(t *testing.T) {
		var r record
		require.NoError(t, json.Unmarshal([]byte(`{"value": 12.5}`), &r))
		require.NotNil(t, r.Value)
		assert.Equal(t, "12.5", r.Value.String())
	})

	t.Run("missing stays nil", func(t *testing.T) {
		var r record
		require.NoError(t, json.Unmarshal([]byte(`{}`), &r))
		assert.Nil(t, r.Value)
	})

	t.Run("null stays nil", func(t *testing.T) {
		var r record
		require.NoError(t, json.Unmarshal([]byte(`{"value": null}`), &r))
		assert.Nil(t, r.Value)
	})

	t.Run("quoted numeral is rejected", func(t *testing.T) {
		var r record
		err := json.Unmarshal([]byte(`{"value": "12.5"}`), &r)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotNumber))
	})

	t.Run("boolean is rejected", func(t *testing.T) {
		var r record
		require.Error(t, json.Unmarshal([]byte(`{"value": true}`), &r))
	})

	t.Run("marshal", func(t *testing.T) {
		v := MustParse("250.125")
		data, err := json.Marshal(record{Value: &v})
		require.NoError(t, err)
		assert.JSONEq(t, `{"value": 250.125}`, string(data))
	})
}
