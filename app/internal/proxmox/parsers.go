package proxmox

import (
	"encoding/json"
	"strconv"
)

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		return int(asFloat(x))
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
		return int(asFloat(x))
	default:
		return int(asFloat(v))
	}
}

func asFloats(vs []any) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		out = append(out, asFloat(v))
	}
	return out
}
