package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type LoopingParams struct {
	BorrowAmount       decimal.Decimal `json:"borrowAmount"`
	TotalDepositAmount decimal.Decimal `json:"totalDepositAmount"`
}

// ComputeMaxLeverage returns the highest leverage reachable by looping a
// deposit in depositBank against a borrow from borrowBank, together with the
// loan to value ratio it follows from.
func ComputeMaxLeverage(depositBank, borrowBank *Bank) (maxLeverage decimal.Decimal, ltv decimal.Decimal, err error) {
	ltv, err = div(depositBank.AssetWeightInit, borrowBank.LiabilityWeightInit)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "liability weight init")
	}
	maxLeverage, err = div(ONE, ONE.Sub(ltv))
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "loan to value of 1")
	}
	return maxLeverage, ltv, nil
}

// ComputeLoopingParams sizes a loop that turns principal, in ui units of the
// deposit mint, into a position of targetLeverage. The borrow is priced with
// the pessimistic time weighted prices on both sides.
func ComputeLoopingParams(principal, targetLeverage decimal.Decimal, depositBank, borrowBank *Bank) (*LoopingParams, error) {
	maxLeverage, _, err := ComputeMaxLeverage(depositBank, borrowBank)
	if err != nil {
		return nil, err
	}

	if targetLeverage.LessThan(ONE) {
		return nil, errors.Wrapf(ErrInvalidLeverage, "target leverage %s below 1", targetLeverage)
	}
	if targetLeverage.GreaterThan(maxLeverage) {
		return nil, errors.Wrapf(ErrInvalidLeverage, "target leverage %s exceeds max leverage %s", targetLeverage, maxLeverage)
	}

	totalDepositAmount := principal.Mul(targetLeverage)
	additionalDepositAmount := totalDepositAmount.Sub(principal)

	depositPrice := depositBank.OraclePrice.PriceWeighted.LowestPrice
	borrowPrice := borrowBank.OraclePrice.PriceWeighted.HighestPrice
	borrowAmount, err := div(additionalDepositAmount.Mul(depositPrice), borrowPrice)
	if err != nil {
		return nil, err
	}

	return &LoopingParams{
		BorrowAmount:       borrowAmount,
		TotalDepositAmount: totalDepositAmount,
	}, nil
}
