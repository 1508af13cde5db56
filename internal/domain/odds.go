package domain

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const unboundedText = "unbounded"

// Odds is a decimal odds quote: a winning unit stake returns odds+1 units.
// An outcome with no stake has unbounded odds, which is carried as an
// explicit sentinel rather than an infinite number.
type Odds struct {
	value     decimal.Decimal
	unbounded bool
}

// NewOdds returns finite odds of v.
func NewOdds(v decimal.Decimal) Odds {
	return Odds{value: v}
}

// UnboundedOdds returns the sentinel for an outcome with zero stake.
func UnboundedOdds() Odds {
	return Odds{unbounded: true}
}

// Unbounded reports whether o is the zero-stake sentinel.
func (o Odds) Unbounded() bool { return o.unbounded }

// Decimal returns the finite value and true, or zero and false when unbounded.
func (o Odds) Decimal() (decimal.Decimal, bool) {
	if o.unbounded {
		return decimal.Zero, false
	}
	return o.value, true
}

// Float64 returns the odds as a float, +Inf when unbounded.
func (o Odds) Float64() float64 {
	if o.unbounded {
		return math.Inf(1)
	}
	f, _ := o.value.Float64()
	return f
}

// Equal reports whether both quotes are unbounded or carry the same value.
func (o Odds) Equal(other Odds) bool {
	if o.unbounded || other.unbounded {
		return o.unbounded == other.unbounded
	}
	return o.value.Equal(other.value)
}

func (o Odds) String() string {
	if o.unbounded {
		return unboundedText
	}
	return o.value.String()
}

// MarshalJSON encodes finite odds as a decimal string and the sentinel as
// "unbounded".
func (o Odds) MarshalJSON() ([]byte, error) {
	if o.unbounded {
		return []byte(`"` + unboundedText + `"`), nil
	}
	return o.value.MarshalJSON()
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (o *Odds) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.Trim(data, `"`), []byte(unboundedText)) {
		*o = UnboundedOdds()
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("odds: %w", err)
	}
	*o = NewOdds(v)
	return nil
}
