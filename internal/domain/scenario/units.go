package scenario

import (
	"math"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/category"
)

const defaultVisitMinutes = 60

// visitMinutes is the default visit length per service code. The catalog's
// service type duration overrides it.
var visitMinutes = map[string]int{
	"PSW":  60,
	"HMK":  60,
	"RES":  240,
	"ADP":  360,
	"NUR":  45,
	"RPN":  45,
	"WND":  60,
	"PT":   60,
	"OT":   60,
	"SLP":  45,
	"RT":   45,
	"DIET": 45,
	"SW":   60,
	"BSO":  60,
	"PERS": 15,
	"RPM":  15,
	"TEL":  30,
	"VNV":  30,
	"MED":  10,
	"SEC":  15,
	"SMH":  15,
	"MOW":  15,
	"TRN":  60,
}

// Codes billed as daily monitoring run every day regardless of amount.
var dailyMonitoringCodes = []string{"RPM", "MED"}

// Security check amounts are doubled before rounding.
const securityCheckCode = "SEC"

// DefaultVisitMinutes returns the table duration for code.
func DefaultVisitMinutes(code string) int {
	if m, ok := visitMinutes[code]; ok {
		return m
	}
	return defaultVisitMinutes
}

// toFrequency converts a category amount into weekly visits for code.
func toFrequency(code, unit string, amount float64, minutes int) int {
	if amount <= 0 {
		return 0
	}
	switch unit {
	case category.UnitHours:
		if minutes <= 0 {
			minutes = defaultVisitMinutes
		}
		return ceil(amount * 60 / float64(minutes))
	case category.UnitUnits:
		if contains(dailyMonitoringCodes, code) {
			return 7
		}
		if code == securityCheckCode {
			return ceil(amount * 2)
		}
		return ceil(amount)
	default:
		return ceil(amount)
	}
}

// ceil rounds up, ignoring float noise below 1e-9.
func ceil(f float64) int {
	return int(math.Ceil(f - 1e-9))
}
