package types

import "github.com/shopspring/decimal"

var centsPerDollar = decimal.NewFromInt(100)

// Tariff holds the two flat rates applied uniformly across a day, in cents
// per kWh. There is no time-of-use variation.
type Tariff struct {
	// What the grid charges per imported kWh.
	ConsumptionCentsPerKWH decimal.Decimal `json:"consumptionCentsPerKWH"`
	// What the grid pays per exported kWh.
	FeedInCentsPerKWH decimal.Decimal `json:"feedInCentsPerKWH"`
}

// ConsumptionDollars values kwh at the consumption rate.
func (t Tariff) ConsumptionDollars(kwh float64) decimal.Decimal {
	return decimal.NewFromFloat(kwh).Mul(t.ConsumptionCentsPerKWH).Div(centsPerDollar)
}

// FeedInDollars values kwh at the feed-in rate.
func (t Tariff) FeedInDollars(kwh float64) decimal.Decimal {
	return decimal.NewFromFloat(kwh).Mul(t.FeedInCentsPerKWH).Div(centsPerDollar)
}
