package tiles

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownKey is the dedup key of features carrying none of KeyAttributes.
// All such features of a layer collapse onto one record.
const UnknownKey = "unknown"

// KeyAttributes are the stable identifier attributes tried, in order, by
// ResolveKey: the official registry code, the ledger number and the numeric
// feature id.
var KeyAttributes = []string{"official_code", "ledger_no", "id"}

// ResolveKey returns the first non-empty value of KeyAttributes, or UnknownKey.
func ResolveKey(attrs map[string]any) string {
	for _, name := range KeyAttributes {
		v, ok := attrs[name]
		if !ok {
			continue
		}
		if s := keyString(v); s != "" {
			return s
		}
	}
	return UnknownKey
}

func keyString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
