package decimal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	shopspring "github.com/shopspring/decimal"
)

// Parse reads a human readable number such as "12.5" into a Decimal at the
// requested scale. Inputs carrying more fractional digits than the scale can
// hold are rejected instead of rounded.
func Parse(text string, scale uint8) (Decimal, error) {
	if scale > MaxScale {
		return Decimal{}, ErrInvalidScale
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Zero(scale), nil
	}
	parsed, err := shopspring.NewFromString(trimmed)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimal: parse %q: %w", text, err)
	}
	if parsed.IsNegative() {
		return Decimal{}, ErrUnderflow
	}
	shifted := parsed.Shift(int32(scale))
	if !shifted.IsInteger() {
		return Decimal{}, fmt.Errorf("%w: %q at scale %d", ErrPrecision, text, scale)
	}
	return FromBig(shifted.BigInt(), scale)
}

// MustParse is Parse for constants known to be valid.
func MustParse(text string, scale uint8) Decimal {
	d, err := Parse(text, scale)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseInferScale parses text using as many fractional digits as it carries.
func ParseInferScale(text string) (Decimal, error) {
	trimmed := strings.TrimSpace(text)
	scale := 0
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		scale = len(trimmed) - idx - 1
	}
	if scale > MaxScale {
		return Decimal{}, ErrInvalidScale
	}
	return Parse(trimmed, uint8(scale))
}

func (d Decimal) shopspring() shopspring.Decimal {
	return shopspring.NewFromBigInt(d.value.ToBig(), -int32(d.scale))
}

// String renders the decimal with exactly scale fractional digits.
func (d Decimal) String() string {
	return d.shopspring().StringFixed(int32(d.scale))
}

// Float64 returns an approximation suitable for metrics and logs only.
func (d Decimal) Float64() float64 {
	f, _ := d.shopspring().Float64()
	return f
}

// MarshalJSON encodes the decimal as a quoted fixed-point string.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a quoted or bare number; the scale is taken from the
// number of fractional digits supplied.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	} else {
		text = string(data)
	}
	parsed, err := ParseInferScale(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so decimals can be written to
// TOML and YAML documents.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := ParseInferScale(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type decimalRLP struct {
	Value *big.Int
	Scale uint8
}

// EncodeRLP writes the decimal as [magnitude, scale].
func (d Decimal) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, decimalRLP{Value: d.value.ToBig(), Scale: d.scale})
}

// DecodeRLP restores a decimal written by EncodeRLP.
func (d *Decimal) DecodeRLP(s *rlp.Stream) error {
	var rec decimalRLP
	if err := s.Decode(&rec); err != nil {
		return err
	}
	decoded, err := FromBig(rec.Value, rec.Scale)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}
