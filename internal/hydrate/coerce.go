package hydrate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String coerces a raw leaf into a string. Numbers are formatted in their
// JSON text form; other kinds are rejected.
func String(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	default:
		return "", fmt.Errorf("hydrate: expected string, got %T", v)
	}
}

// Int64 coerces a raw leaf into an int64. It accepts json.Number, numeric
// strings (token endpoints send epochs as "1700000000"), and Go numeric
// types. Fractional values are rejected.
func Int64(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		return parseInt(x.String())
	case string:
		return parseInt(strings.TrimSpace(x))
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("hydrate: %v is not an integer", x)
		}

		if x >= two63 || x < -two63 {
			return 0, fmt.Errorf("hydrate: %v overflows int64", x)
		}

		return int64(x), nil
	default:
		return 0, fmt.Errorf("hydrate: expected integer, got %T", v)
	}
}

const two63 = float64(1 << 63)

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("hydrate: parsing integer %q: %w", s, err)
	}

	return n, nil
}

// Bool coerces a raw leaf into a bool. SharePoint context tokens carry
// booleans as "true"/"false" strings, so those are accepted too.
func Bool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("hydrate: parsing bool %q: %w", x, err)
		}

		return b, nil
	default:
		return false, fmt.Errorf("hydrate: expected bool, got %T", v)
	}
}
