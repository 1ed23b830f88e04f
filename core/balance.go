package core

import (
	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type (
	// Balance is one account's position in one bank. Shares are native units.
	Balance struct {
		Active               bool             `json:"active"`
		BankPk               solana.PublicKey `json:"bankPk"`
		AssetShares          decimal.Decimal  `json:"assetShares"`
		LiabilityShares      decimal.Decimal  `json:"liabilityShares"`
		EmissionsOutstanding decimal.Decimal  `json:"emissionsOutstanding"`
		LastUpdate           int64            `json:"lastUpdate"`
	}

	BalanceRaw struct {
		Active               bool
		BankPk               solana.PublicKey
		AssetShares          utils.WrappedI80F48
		LiabilityShares      utils.WrappedI80F48
		EmissionsOutstanding utils.WrappedI80F48
		LastUpdate           uint64
	}
)

type BalanceSide uint8

const (
	BalanceSideAssets BalanceSide = iota
	BalanceSideLiabilities
	BalanceSideEmpty
)

func (bs BalanceSide) String() string {
	switch bs {
	case BalanceSideAssets:
		return "Assets"
	case BalanceSideLiabilities:
		return "Liabilities"
	case BalanceSideEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

func NewBalanceFromRaw(raw BalanceRaw) *Balance {
	return &Balance{
		Active:               raw.Active,
		BankPk:               raw.BankPk,
		AssetShares:          raw.AssetShares.Decimal(),
		LiabilityShares:      raw.LiabilityShares.Decimal(),
		EmissionsOutstanding: raw.EmissionsOutstanding.Decimal(),
		LastUpdate:           int64(raw.LastUpdate),
	}
}

// NewEmptyBalance is the position an account implicitly holds in a bank it
// never touched.
func NewEmptyBalance(bankPk solana.PublicKey) *Balance {
	return &Balance{
		Active:               false,
		BankPk:               bankPk,
		AssetShares:          decimal.Zero,
		LiabilityShares:      decimal.Zero,
		EmissionsOutstanding: decimal.Zero,
	}
}

func (b *Balance) IsEmpty(side BalanceSide) bool {
	switch side {
	case BalanceSideAssets:
		return b.AssetShares.LessThan(EMPTY_BALANCE_THRESHOLD)
	case BalanceSideLiabilities:
		return b.LiabilityShares.LessThan(EMPTY_BALANCE_THRESHOLD)
	default:
		return true
	}
}

func (b *Balance) GetSide() (BalanceSide, error) {
	assetShares := b.AssetShares
	liabilityShares := b.LiabilityShares

	if assetShares.GreaterThan(ZERO_AMOUNT_THRESHOLD) && liabilityShares.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return BalanceSideEmpty, IllegalBalanceState
	}

	if assetShares.GreaterThanOrEqual(EMPTY_BALANCE_THRESHOLD) {
		return BalanceSideAssets, nil
	}

	if liabilityShares.GreaterThanOrEqual(EMPTY_BALANCE_THRESHOLD) {
		return BalanceSideLiabilities, nil
	}

	return BalanceSideEmpty, nil
}

// ComputeUsdValue values both sides at the point price.
func (b *Balance) ComputeUsdValue(bank *Bank, requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	return b.computeUsdValue(bank, requirementType, PriceBiasNone, PriceBiasNone)
}

// GetUsdValueWithPriceBias values assets at the low end and liabilities at the
// high end of the confidence band.
func (b *Balance) GetUsdValueWithPriceBias(bank *Bank, requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	return b.computeUsdValue(bank, requirementType, PriceBiasLowest, PriceBiasHighest)
}

func (b *Balance) computeUsdValue(bank *Bank, requirementType RequirementType, assetBias, liabilityBias PriceBias) (decimal.Decimal, decimal.Decimal, error) {
	assetsValue, err := bank.ComputeAssetUsdValue(b.AssetShares, requirementType, assetBias)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	liabilitiesValue, err := bank.ComputeLiabilityUsdValue(b.LiabilityShares, requirementType, liabilityBias)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return assetsValue, liabilitiesValue, nil
}

func (b *Balance) ComputeQuantity(bank *Bank) (decimal.Decimal, decimal.Decimal) {
	assetsQuantity := bank.GetAssetQuantity(b.AssetShares)
	liabilitiesQuantity := bank.GetLiabilityQuantity(b.LiabilityShares)
	return assetsQuantity, liabilitiesQuantity
}

func (b *Balance) ComputeQuantityUi(bank *Bank) (decimal.Decimal, decimal.Decimal) {
	assetsQuantity, liabilitiesQuantity := b.ComputeQuantity(bank)
	return NativeToUi(assetsQuantity, bank.MintDecimals), NativeToUi(liabilitiesQuantity, bank.MintDecimals)
}
