// Package units holds the rounding and formatting rules shared by probes,
// rollups and the API.
package units

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Round rounds v to places decimal places, half away from zero.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Percent returns part/whole*100 rounded to places. A zero or negative
// whole yields 0.
func Percent(part, whole float64, places int32) float64 {
	if whole <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(part).Div(decimal.NewFromFloat(whole)).Mul(decimal.NewFromInt(100))
	return p.Round(places).InexactFloat64()
}

// FormatUptime renders seconds as s, m, h or d with one decimal for h and d.
func FormatUptime(seconds int64) string {
	s := decimal.NewFromInt(seconds)
	switch {
	case seconds < 60:
		return strconv.FormatInt(seconds, 10) + "s"
	case seconds < 3600:
		return s.Div(decimal.NewFromInt(60)).Round(0).String() + "m"
	case seconds < 86400:
		return s.Div(decimal.NewFromInt(3600)).Round(1).String() + "h"
	default:
		return s.Div(decimal.NewFromInt(86400)).Round(1).String() + "d"
	}
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}
