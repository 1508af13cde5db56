package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOdds_JSON(t *testing.T) {
	raw, err := json.Marshal(map[string]Odds{
		"a": NewOdds(decimal.RequireFromString("1.5")),
		"b": UnboundedOdds(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1.5","b":"unbounded"}`, string(raw))

	var back map[string]Odds
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back["a"].Equal(NewOdds(decimal.RequireFromString("1.5"))))
	assert.True(t, back["b"].Unbounded())
}

func TestOdds_UnmarshalRejectsGarbage(t *testing.T) {
	var o Odds
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &o))
}

func TestOdds_Float64(t *testing.T) {
	assert.True(t, math.IsInf(UnboundedOdds().Float64(), 1))
	assert.InDelta(t, 2.25, NewOdds(decimal.RequireFromString("2.25")).Float64(), 1e-9)
}

func TestOdds_Equal(t *testing.T) {
	one := NewOdds(decimal.NewFromInt(1))
	assert.True(t, one.Equal(NewOdds(decimal.RequireFromString("1.00000000"))))
	assert.False(t, one.Equal(UnboundedOdds()))
	assert.True(t, UnboundedOdds().Equal(UnboundedOdds()))
}

func TestSettlement_HouseRetained(t *testing.T) {
	assert.True(t, Settlement{}.HouseRetained())
	assert.False(t, Settlement{PayoutList: []Payout{{BettorID: "p1"}}}.HouseRetained())
}
