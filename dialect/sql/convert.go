package sql

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/dbrest/schema"
	"github.com/syssam/dbrest/schema/field"
)

// ValueConverter coerces values between their transport and driver forms.
type ValueConverter interface {
	// ConvertInput coerces a transport value before it is bound.
	ConvertInput(c *schema.Column, v any) (any, error)
	// ConvertOutput normalizes a scanned driver value.
	ConvertOutput(c *schema.Column, v any) any
}

// Layouts used to render temporal values.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)

// ConvertInput implements the ValueConverter interface.
func (base) ConvertInput(c *schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case c.Type.Boolean():
		return toBool(v)
	case c.Type.Binary():
		s, ok := v.(string)
		if !ok {
			if b, ok := v.([]byte); ok {
				return base64.StdEncoding.EncodeToString(b), nil
			}
			return nil, fmt.Errorf("dialect/sql: column %q expects base64 text, got %T", c.Name, v)
		}
		return StdBase64(s), nil
	}
	return v, nil
}

// ConvertOutput implements the ValueConverter interface.
func (base) ConvertOutput(c *schema.Column, v any) any {
	return convertOutput(c, v)
}

func convertOutput(c *schema.Column, v any) any {
	if v == nil {
		return nil
	}
	switch t := c.Type; {
	case t.Boolean():
		if b, err := toBool(v); err == nil {
			return b
		}
	case t.Integer():
		if n, err := toInt(v); err == nil {
			return n
		}
	case t == field.TypeFloat || t == field.TypeDouble:
		if f, err := toFloat(v); err == nil {
			return f
		}
	case t == field.TypeDecimal:
		return formatDecimal(v, c.EffectiveScale())
	case t.Binary():
		switch v := v.(type) {
		case []byte:
			return stripNewlines(string(v))
		case string:
			return stripNewlines(v)
		}
	case t == field.TypeDate:
		if tm, ok := v.(time.Time); ok {
			return tm.Format(DateLayout)
		}
	case t == field.TypeTime:
		if tm, ok := v.(time.Time); ok {
			return tm.Format(TimeLayout)
		}
	case t == field.TypeTimestamp:
		if tm, ok := v.(time.Time); ok {
			return tm.Format(TimestampLayout)
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// StdBase64 converts base64url text to standard padded base64.
func StdBase64(s string) string {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(s))
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return s
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return toBool(string(v))
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes", "on":
			return true, nil
		case "0", "f", "false", "n", "no", "off", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("dialect/sql: invalid boolean %v", v)
}

func toInt(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int64(v), nil
		}
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("dialect/sql: invalid integer %v", v)
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("dialect/sql: invalid float %v", v)
}

// formatDecimal renders a decimal with exactly scale fractional digits.
// Text returned by the driver is normalized without a float round trip.
func formatDecimal(v any, scale int) string {
	switch v := v.(type) {
	case []byte:
		return padDecimal(string(v), scale)
	case string:
		return padDecimal(v, scale)
	case int64:
		return padDecimal(strconv.FormatInt(v, 10), scale)
	case float64:
		return strconv.FormatFloat(v, 'f', scale, 64)
	default:
		return fmt.Sprint(v)
	}
}

func padDecimal(s string, scale int) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return s
	}
	whole, frac, _ := strings.Cut(s, ".")
	switch {
	case len(frac) > scale:
		// Digits beyond the scale can only be zeros for a stored decimal.
		frac = frac[:scale]
	case len(frac) < scale:
		frac += strings.Repeat("0", scale-len(frac))
	}
	if scale == 0 {
		return whole
	}
	return whole + "." + frac
}
