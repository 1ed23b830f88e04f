package core

import (
	"github.com/shopspring/decimal"
)

// ComputeClaimedEmissions returns the emissions accrued on the balance since
// its last update that the bank could still pay out. Lending emissions take
// precedence when a bank has both flags set.
func (b *Balance) ComputeClaimedEmissions(log Log, bank *Bank, currentTimestamp int64) decimal.Decimal {
	assets, liabilities := b.ComputeQuantity(bank)

	var balanceAmount decimal.Decimal
	switch {
	case bank.GetFlag(BankFlagsLendingActive):
		balanceAmount = assets
	case bank.GetFlag(BankFlagsBorrowActive):
		balanceAmount = liabilities
	default:
		return decimal.Zero
	}

	lastUpdate := b.LastUpdate
	if lastUpdate < MIN_EMISSIONS_START_TIME {
		lastUpdate = currentTimestamp
	}

	emissions := CalcEmissions(currentTimestamp-lastUpdate, balanceAmount, bank.EmissionsRate, bank.MintDecimals)
	emissionsReal := decimal.Min(emissions, bank.EmissionsRemaining)

	if !emissions.Equal(emissionsReal) {
		log.Warn().
			Str("bank", bank.Address.String()).
			Str("calculated", emissions.String()).
			Str("capped", emissionsReal.String()).
			Msg("emissions capped by remaining supply")
	}

	return emissionsReal
}

// ComputeTotalOutstandingEmissions adds the not yet settled emissions to the
// ones already booked on the balance.
func (b *Balance) ComputeTotalOutstandingEmissions(log Log, bank *Bank, currentTimestamp int64) decimal.Decimal {
	return b.EmissionsOutstanding.Add(b.ComputeClaimedEmissions(log, bank, currentTimestamp))
}

// CalcEmissions is balance * rate * period / year, with the balance given in
// native units of a mint with the given decimals.
func CalcEmissions(period int64, balanceAmount decimal.Decimal, emissionsRate decimal.Decimal, mintDecimals uint8) decimal.Decimal {
	if period <= 0 || !emissionsRate.IsPositive() || !balanceAmount.IsPositive() {
		return decimal.Zero
	}

	emissions := balanceAmount.Mul(emissionsRate).Mul(decimal.NewFromInt(period)).Div(decimal.NewFromInt(SECONDS_PER_YEAR))
	return NativeToUi(emissions, mintDecimals)
}
