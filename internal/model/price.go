package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Price is a listing price. It is stored in documents as a decimal string so
// no precision is lost, and accepts legacy numeric values on read.
type Price struct {
	decimal.Decimal
}

// NewPrice parses a price from user input. Thousands separators are allowed.
func NewPrice(s string) (Price, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q", s)
	}
	if d.IsNegative() {
		return Price{}, fmt.Errorf("price must not be negative")
	}
	return Price{Decimal: d}, nil
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.Decimal.String())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		d, err := decimal.NewFromString(strings.ReplaceAll(raw.StringValue(), ",", ""))
		if err != nil {
			// Legacy free-text prices decode as zero rather than failing the read.
			p.Decimal = decimal.Zero
			return nil
		}
		p.Decimal = d
	case bsontype.Double:
		p.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		p.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		p.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return err
		}
		p.Decimal = d
	case bsontype.Null:
		p.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into price", t)
	}
	return nil
}

// UnmarshalParam lets echo bind a price from a form or query value.
func (p *Price) UnmarshalParam(param string) error {
	parsed, err := NewPrice(param)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
