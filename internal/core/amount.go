package core

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmountDecimals is the number of fractional digits the ledger settles in.
const AmountDecimals = 7

// AmountScale is the number of minor units in one whole token.
const AmountScale Amount = 10_000_000

// Amount is a token quantity in minor units. It is persisted as BIGINT and sent
// over JSON as a decimal string, so no value ever passes through a float.
type Amount int64

// ParseAmount reads a decimal string such as "12", "-0.5" or "25.1234567". More
// than AmountDecimals fractional digits is an error rather than a rounding.
func ParseAmount(s string) (Amount, error) {
	raw := s
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if len(frac) > AmountDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", raw, AmountDecimals)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	var w, f int64
	var err error
	if whole != "" {
		if w, err = strconv.ParseInt(whole, 10, 64); err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
	}
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", AmountDecimals-len(frac)), 10, 64)
	}
	if w > (math.MaxInt64-f)/int64(AmountScale) {
		return 0, fmt.Errorf("amount %q out of range", raw)
	}
	a := Amount(w*int64(AmountScale) + f)
	if neg {
		a = -a
	}
	return a, nil
}

// MustParseAmount is ParseAmount for constants; it panics on bad input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the amount with trailing fractional zeros trimmed.
func (a Amount) String() string {
	sign := ""
	u := uint64(a)
	if a < 0 {
		sign = "-"
		u = uint64(-(a + 1)) + 1
	}
	scale := uint64(AmountScale)
	whole := strconv.FormatUint(u/scale, 10)
	rem := u % scale
	if rem == 0 {
		return sign + whole
	}
	frac := fmt.Sprintf("%0*d", AmountDecimals, rem)
	return sign + whole + "." + strings.TrimRight(frac, "0")
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, a.String()), nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return fmt.Errorf("invalid amount %s: %w", data, err)
		}
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
