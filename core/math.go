package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// div is decimal.Div without the panic on a zero divisor.
func div(numerator, denominator decimal.Decimal) (decimal.Decimal, error) {
	if denominator.IsZero() {
		return decimal.Zero, errors.Wrapf(ErrDivisionByZero, "%s / 0", numerator)
	}
	return numerator.Div(denominator), nil
}

// NativeToUi scales a native token amount down by 10^decimals.
func NativeToUi(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(-int32(decimals))
}

func UiToNative(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(int32(decimals))
}
