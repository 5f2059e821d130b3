// Package valuation implements the pure formula that turns a wallet's net
// asset value and an asset's pricing into a user holding.
package valuation

import "github.com/shopspring/decimal"

// Stored precision of money and share quantities.
const (
	MoneyScale    int32 = 4
	QuantityScale int32 = 8
)

var hundred = decimal.NewFromInt(100)

// Result holds the four derived fields of a user holding.
type Result struct {
	CostPrice  decimal.Decimal
	Stock      decimal.Decimal
	CloseValue decimal.Decimal
	LossGain   decimal.Decimal
}

// Valuate derives a holding from the wallet NAV and the asset's
// allocation percentage, cost per share and close price.
//
//	costPrice  = allocation/100 × nav
//	stock      = costPrice / costPerShare (0 when costPerShare is 0)
//	closeValue = closePrice × stock
//	lossGain   = closeValue − costPrice
func Valuate(nav, allocationPercentage, costPerShare, closePrice decimal.Decimal) Result {
	costPrice := CostPrice(nav, allocationPercentage)
	stock := Stock(costPrice, costPerShare)
	return Revalue(stock, costPrice, closePrice)
}

// CostPrice returns the capital allocated to an asset.
func CostPrice(nav, allocationPercentage decimal.Decimal) decimal.Decimal {
	return allocationPercentage.Div(hundred).Mul(nav).Round(MoneyScale)
}

// Stock returns the number of shares costPrice buys at costPerShare.
func Stock(costPrice, costPerShare decimal.Decimal) decimal.Decimal {
	if !costPerShare.IsPositive() {
		return decimal.Zero
	}
	return costPrice.DivRound(costPerShare, QuantityScale)
}

// Revalue re-derives close value and loss/gain for an existing position.
func Revalue(stock, costPrice, closePrice decimal.Decimal) Result {
	closeValue := closePrice.Mul(stock).Round(MoneyScale)
	return Result{
		CostPrice:  costPrice,
		Stock:      stock,
		CloseValue: closeValue,
		LossGain:   closeValue.Sub(costPrice),
	}
}

// ClampAllocation bounds an allocation percentage to [0, 100].
func ClampAllocation(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// ValidAllocation reports whether p lies in [0, 100].
func ValidAllocation(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// Percentage returns part/whole × 100, or 0 when whole is 0.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(MoneyScale)
}
