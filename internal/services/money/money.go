// Package money converts between the float amounts used on the wire and the
// integer minor units stored in the database, and computes loyalty points.
package money

import (
	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	pointsRate = decimal.RequireFromString("0.10")
)

func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(amount int64) float64 {
	value, _ := decimal.NewFromInt(amount).Div(hundred).Float64()
	return value
}

// LoyaltyPoints returns the points earned for an order total in minor units:
// a fixed percentage of the total, floored to a whole point.
func LoyaltyPoints(totalMinorUnits int64) int64 {
	return decimal.NewFromInt(totalMinorUnits).Div(hundred).Mul(pointsRate).Floor().IntPart()
}
