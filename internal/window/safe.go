package window

import "math"

// SafeDivide divides num by den, returning nil instead of raising or
// producing Inf when the denominator is zero. This is the policy for every
// derived ratio in the engine: zero (or null) denominator -> null result.
func SafeDivide(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

// SafeDividePtr is SafeDivide over nullable operands: a nil numerator or
// denominator yields nil.
func SafeDividePtr(num, den *float64) *float64 {
	if num == nil || den == nil {
		return nil
	}
	return SafeDivide(*num, *den)
}

// Round2 rounds to 2 decimal places, the precision of every reported
// percentage and factor.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round2Ptr rounds a nullable value to 2 decimal places.
func Round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}

// Float returns a pointer to v. Convenience for building nullable cells.
func Float(v float64) *float64 {
	return &v
}
