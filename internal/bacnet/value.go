package bacnet

import "strconv"

// Binary present values as encoded by the controller in text mode.
const (
	Active   = "active"
	Inactive = "inactive"
)

// Numeric converts a cached value to a number. Binary states map to 1 and
// 0; numeric strings are parsed. It reports false for anything else.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		switch x {
		case Active:
			return 1, true
		case Inactive:
			return 0, true
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
