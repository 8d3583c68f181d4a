package normalize

import (
	"encoding/json"
	"math"
	"time"
)

// timestampKeys are the YouTrack fields that carry epoch milliseconds.
var timestampKeys = []string{"created", "updated"}

// isoLayout renders a UTC instant with an explicit +00:00 offset, the way
// YouTrack's own web UI presents timestamps. Whole seconds carry no fraction.
const isoLayout = "2006-01-02T15:04:05.999+00:00"

// AddISOTimestamps walks a decoded JSON tree and, for every object holding an
// integer "created" or "updated" field, adds a sibling "<field>_iso8601"
// string with the same instant in human-readable form. The input is never
// modified; objects and arrays come back as fresh copies. Values that are not
// integers, or that fall outside the year 1-9999 range, are left alone with
// no sibling added.
func AddISOTimestamps(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val)+2)
		for k, nested := range val {
			out[k] = nested
		}
		for _, key := range timestampKeys {
			ms, ok := epochMillis(out[key])
			if !ok {
				continue
			}
			iso, ok := isoFromMillis(ms)
			if !ok {
				continue
			}
			out[key+"_iso8601"] = iso
		}
		for k, nested := range out {
			switch nested.(type) {
			case map[string]any, []any:
				out[k] = AddISOTimestamps(nested)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = AddISOTimestamps(item)
		}
		return out
	default:
		return v
	}
}

// epochMillis reports whether v is a JSON integer and returns its value.
// Trees decoded with json.Decoder.UseNumber carry json.Number; trees built in
// Go code carry int/int64; plain json.Unmarshal carries float64, which counts
// only when it holds an integral value.
func epochMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		ms, err := n.Int64()
		return ms, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// isoFromMillis formats epoch milliseconds as ISO-8601 UTC. Instants outside
// the four-digit-year range cannot be rendered and report false.
func isoFromMillis(ms int64) (string, bool) {
	t := time.UnixMilli(ms).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return "", false
	}
	return t.Format(isoLayout), true
}

// FormatJSON renders a tool result for the agent boundary: timestamps
// augmented, then pretty-printed JSON. This is the single serialization path
// for every tool response, success and error alike.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(AddISOTimestamps(v), "", "  ")
	if err != nil {
		fallback, _ := json.Marshal(map[string]string{"error": "failed to encode response: " + err.Error()})
		return string(fallback)
	}
	return string(data)
}
