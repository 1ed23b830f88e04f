package core

import (
	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/shopspring/decimal"
)

type (
	InterestRateConfig struct {
		OptimalUtilizationRate decimal.Decimal `json:"optimalUtilizationRate" yaml:"optimalUtilizationRate"`
		PlateauInterestRate    decimal.Decimal `json:"plateauInterestRate" yaml:"plateauInterestRate"`
		MaxInterestRate        decimal.Decimal `json:"maxInterestRate" yaml:"maxInterestRate"`

		InsuranceFeeFixedApr decimal.Decimal `json:"insuranceFeeFixedApr" yaml:"insuranceFeeFixedApr"`
		InsuranceIrFee       decimal.Decimal `json:"insuranceIrFee" yaml:"insuranceIrFee"`
		ProtocolFixedFeeApr  decimal.Decimal `json:"protocolFixedFeeApr" yaml:"protocolFixedFeeApr"`
		ProtocolIrFee        decimal.Decimal `json:"protocolIrFee" yaml:"protocolIrFee"`
	}

	// InterestRateConfigRaw is the on-chain layout of InterestRateConfig.
	InterestRateConfigRaw struct {
		OptimalUtilizationRate utils.WrappedI80F48
		PlateauInterestRate    utils.WrappedI80F48
		MaxInterestRate        utils.WrappedI80F48

		InsuranceFeeFixedApr utils.WrappedI80F48
		InsuranceIrFee       utils.WrappedI80F48
		ProtocolFixedFeeApr  utils.WrappedI80F48
		ProtocolIrFee        utils.WrappedI80F48
	}

	InterestRates struct {
		LendingRate   decimal.Decimal `json:"lendingRate"`
		BorrowingRate decimal.Decimal `json:"borrowingRate"`
	}
)

func NewInterestRateConfigFromRaw(raw InterestRateConfigRaw) InterestRateConfig {
	return InterestRateConfig{
		OptimalUtilizationRate: raw.OptimalUtilizationRate.Decimal(),
		PlateauInterestRate:    raw.PlateauInterestRate.Decimal(),
		MaxInterestRate:        raw.MaxInterestRate.Decimal(),
		InsuranceFeeFixedApr:   raw.InsuranceFeeFixedApr.Decimal(),
		InsuranceIrFee:         raw.InsuranceIrFee.Decimal(),
		ProtocolFixedFeeApr:    raw.ProtocolFixedFeeApr.Decimal(),
		ProtocolIrFee:          raw.ProtocolIrFee.Decimal(),
	}
}

// CalcInterestRate returns the lending and borrowing APRs at the given
// utilization together with the group and insurance fee APRs they include.
func (i *InterestRateConfig) CalcInterestRate(utilizationRatio decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	protocolIrFee := i.ProtocolIrFee
	insuranceIrFee := i.InsuranceIrFee
	protocolFixedFeeApr := i.ProtocolFixedFeeApr
	insuranceFeeFixedApr := i.InsuranceFeeFixedApr

	rateFee := protocolIrFee.Add(insuranceIrFee)
	totalFixedFeeApr := protocolFixedFeeApr.Add(insuranceFeeFixedApr)

	baseRate, err := i.InterestRateCurve(utilizationRatio)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	lendingRate := baseRate.Mul(utilizationRatio)
	borrowingRate := baseRate.Mul(ONE.Add(rateFee)).Add(totalFixedFeeApr)

	groupFeesApr := i.CalcFeeRate(baseRate, protocolIrFee, protocolFixedFeeApr)
	insuranceFeesApr := i.CalcFeeRate(baseRate, insuranceIrFee, insuranceFeeFixedApr)

	return lendingRate, borrowingRate, groupFeesApr, insuranceFeesApr, nil
}

func (i *InterestRateConfig) ComputeInterestRates(utilizationRatio decimal.Decimal) (InterestRates, error) {
	lendingRate, borrowingRate, _, _, err := i.CalcInterestRate(utilizationRatio)
	if err != nil {
		return InterestRates{}, err
	}
	return InterestRates{LendingRate: lendingRate, BorrowingRate: borrowingRate}, nil
}

// InterestRateCurve is the kinked base rate. Both branches evaluate to the
// plateau rate at the optimal utilization.
func (i *InterestRateConfig) InterestRateCurve(utilizationRatio decimal.Decimal) (decimal.Decimal, error) {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if utilizationRatio.LessThanOrEqual(optimalUr) {
		if utilizationRatio.IsZero() {
			return decimal.Zero, nil
		}
		// ur / optimal_ur * plateau_ir
		return div(utilizationRatio.Mul(plateauIr), optimalUr)
	}

	// (ur - optimal_ur) / (1 - optimal_ur) * (max_ir - plateau_ir) + plateau_ir
	oneMinusOptimalUr := ONE.Sub(optimalUr)
	maxIrMinusPlateau := maxIr.Sub(plateauIr)
	utilizationRatioMinusOptimalUr := utilizationRatio.Sub(optimalUr)

	slope, err := div(utilizationRatioMinusOptimalUr, oneMinusOptimalUr)
	if err != nil {
		return decimal.Zero, err
	}
	return slope.Mul(maxIrMinusPlateau).Add(plateauIr), nil
}

func (i *InterestRateConfig) CalcFeeRate(baseRate, irFee, fixedFeeApr decimal.Decimal) decimal.Decimal {
	return baseRate.Mul(irFee).Add(fixedFeeApr)
}

func (i *InterestRateConfig) Validate() error {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if optimalUr.LessThanOrEqual(decimal.Zero) || optimalUr.GreaterThan(ONE) {
		return ErrOptimalUr
	}
	if plateauIr.LessThan(decimal.Zero) {
		return ErrPlateauIr
	}
	if maxIr.LessThan(decimal.Zero) {
		return ErrMaxIr
	}
	if plateauIr.GreaterThan(maxIr) {
		return ErrPlateauGreaterThanMax
	}

	return nil
}

// AprToApy compounds hourly: (1 + apr / hoursPerYear)^hoursPerYear - 1.
func AprToApy(apr decimal.Decimal) decimal.Decimal {
	hoursPerYear := decimal.NewFromInt(HOURS_PER_YEAR)
	return (ONE.Add(apr.Div(hoursPerYear))).Pow(hoursPerYear).Sub(ONE).Round(8)
}
