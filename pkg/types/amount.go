package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// CollateralDecimals is the scale of collateral amounts and prices (USDC style).
	CollateralDecimals = 6

	// ShareDecimals is the scale of outcome share quantities (ERC-1155 style).
	ShareDecimals = 18
)

//nolint:gochecknoglobals // fixed-point constants
var (
	// OneCollateral is one whole collateral unit, which is also the settlement
	// value of one winning share.
	OneCollateral = NewAmount(1_000_000)

	// HalfCollateral is what each share of an invalidated market redeems for.
	HalfCollateral = NewAmount(500_000)

	// OneShare is one whole share in base units.
	OneShare = NewAmount(1_000_000_000_000_000_000)

	// PriceTick is the smallest price increment (one cent).
	PriceTick = NewAmount(10_000)

	// ShareTick is the smallest share increment (0.01 share).
	ShareTick = NewAmount(10_000_000_000_000_000)
)

// Amount is a non-negative fixed-point quantity backed by a 256-bit integer.
// It is used for collateral, share quantities and prices; the scale depends
// on what the value represents. Amount is a value type and safe to copy.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding n base units.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-unit decimal integer string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if s == "" {
		return a, fmt.Errorf("empty amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return a, fmt.Errorf("parse amount %q: %w", s, err)
	}
	a.v = *v
	return a, nil
}

// MustParseAmount is ParseAmount that panics on error. Intended for tests and constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseUnits converts a human decimal string ("0.55", "10") into base units
// with the given number of decimals. More fractional digits than decimals is an error.
func ParseUnits(s string, decimals int) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && frac == "" {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > decimals {
		return Amount{}, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("invalid amount %q", s)
		}
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return Amount{}, nil
	}
	return ParseAmount(digits)
}

// MustParseUnits is ParseUnits that panics on error.
func MustParseUnits(s string, decimals int) Amount {
	a, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Shares parses a human share quantity ("10", "2.5").
func Shares(s string) Amount {
	return MustParseUnits(s, ShareDecimals)
}

// Collateral parses a human collateral amount ("5.50").
func Collateral(s string) Amount {
	return MustParseUnits(s, CollateralDecimals)
}

// Price parses a human price in collateral per share ("0.55").
func Price(s string) Amount {
	return MustParseUnits(s, CollateralDecimals)
}

// FormatUnits renders the amount as a human decimal with the given scale,
// trimming trailing zeros ("5.5", "10", "0.01").
func (a Amount) FormatUnits(decimals int) string {
	digits := a.v.Dec()
	if decimals == 0 {
		return digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// String returns the base-unit decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText encodes the amount as a base-unit decimal string.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText decodes a base-unit decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Uint256 returns a copy of the underlying integer.
func (a Amount) Uint256() *uint256.Int {
	return a.v.Clone()
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool {
	return a.v.Lt(&b.v)
}

// Gt reports a > b.
func (a Amount) Gt(b Amount) bool {
	return a.v.Gt(&b.v)
}

// Eq reports a == b.
func (a Amount) Eq(b Amount) bool {
	return a.v.Eq(&b.v)
}

// Add returns a + b. Callers that take amounts from outside use AddChecked.
func (a Amount) Add(b Amount) Amount {
	var z Amount
	z.v.Add(&a.v, &b.v)
	return z
}

// AddChecked returns a + b and false if the sum overflows 256 bits.
func (a Amount) AddChecked(b Amount) (Amount, bool) {
	var z Amount
	_, overflow := z.v.AddOverflow(&a.v, &b.v)
	return z, !overflow
}

// Sub returns a - b and false if b > a.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.v.Lt(&b.v) {
		return Amount{}, false
	}
	var z Amount
	z.v.Sub(&a.v, &b.v)
	return z, true
}

// Mul returns a * b and false on overflow.
func (a Amount) Mul(b Amount) (Amount, bool) {
	var z Amount
	_, overflow := z.v.MulOverflow(&a.v, &b.v)
	return z, !overflow
}

// Div returns a / b (integer division). Division by zero yields zero.
func (a Amount) Div(b Amount) Amount {
	var z Amount
	z.v.Div(&a.v, &b.v)
	return z
}

// IsMultipleOf reports whether a is an exact multiple of step. A zero step is never satisfied.
func (a Amount) IsMultipleOf(step Amount) bool {
	if step.IsZero() {
		return false
	}
	var rem uint256.Int
	rem.Mod(&a.v, &step.v)
	return rem.IsZero()
}

// MinAmount returns the smaller of a and b.
func MinAmount(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Cost returns the collateral paid for shares at price: shares * price / 1e18.
// With tick-aligned inputs the division is exact.
func Cost(shares, price Amount) Amount {
	product, ok := shares.Mul(price)
	if !ok {
		// shares are bounded far below 2^200 by validation; an overflow here
		// is a programming error.
		panic("cost overflow")
	}
	return product.Div(OneShare)
}

// ComplementPrice returns 1 - price in collateral units. Price must be < 1.
func ComplementPrice(price Amount) Amount {
	c, ok := OneCollateral.Sub(price)
	if !ok {
		return Amount{}
	}
	return c
}
