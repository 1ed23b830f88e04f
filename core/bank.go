package core

import (
	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/facebookgo/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	// Bank is a read-only snapshot of one liquidity pool together with the
	// oracle price it was loaded with. Reloads replace the whole value.
	Bank struct {
		Address      solana.PublicKey `json:"address"`
		Group        solana.PublicKey `json:"group"`
		Mint         solana.PublicKey `json:"mint"`
		MintDecimals uint8            `json:"mintDecimals"`

		AssetShareValue     decimal.Decimal `json:"assetShareValue"`
		LiabilityShareValue decimal.Decimal `json:"liabilityShareValue"`

		LiquidityVault solana.PublicKey `json:"liquidityVault"`
		InsuranceVault solana.PublicKey `json:"insuranceVault"`
		FeeVault       solana.PublicKey `json:"feeVault"`

		CollectedInsuranceFeesOutstanding decimal.Decimal `json:"collectedInsuranceFeesOutstanding"`
		CollectedGroupFeesOutstanding     decimal.Decimal `json:"collectedGroupFeesOutstanding"`

		TotalLiabilityShares decimal.Decimal `json:"totalLiabilityShares"`
		TotalAssetShares     decimal.Decimal `json:"totalAssetShares"`

		LastUpdate int64 `json:"lastUpdate"`

		BankConfig `json:"bankConfig"`

		Flags BankFlags     `json:"flags"`
		Emode EmodeSettings `json:"emode"`

		EmissionsMint      solana.PublicKey `json:"emissionsMint"`
		EmissionsRate      decimal.Decimal  `json:"emissionsRate"`
		EmissionsRemaining decimal.Decimal  `json:"emissionsRemaining"`

		OraclePrice OraclePrice `json:"oraclePrice"`
	}

	BankConfig struct {
		AssetWeightInit  decimal.Decimal `json:"assetWeightInit"`
		AssetWeightMaint decimal.Decimal `json:"assetWeightMaint"`

		LiabilityWeightInit  decimal.Decimal `json:"liabilityWeightInit"`
		LiabilityWeightMaint decimal.Decimal `json:"liabilityWeightMaint"`

		DepositLimit   decimal.Decimal `json:"depositLimit"`
		LiabilityLimit decimal.Decimal `json:"liabilityLimit"`

		InterestRateConfig `json:"interestRateConfig"`

		OperationalState BankOperationalState `json:"operationalState"`

		RiskTier                 RiskTier        `json:"riskTier"`
		TotalAssetValueInitLimit decimal.Decimal `json:"totalAssetValueInitLimit"`

		OracleSetup  OracleSetup        `json:"oracleSetup"`
		OracleKeys   []solana.PublicKey `json:"oracleKeys"`
		OracleMaxAge int64              `json:"oracleMaxAge"`
	}

	// BankRaw is a bank account as decoded from chain, before the wrapped
	// fixed point fields are converted.
	BankRaw struct {
		Group        solana.PublicKey
		Mint         solana.PublicKey
		MintDecimals uint8

		AssetShareValue     utils.WrappedI80F48
		LiabilityShareValue utils.WrappedI80F48

		LiquidityVault solana.PublicKey
		InsuranceVault solana.PublicKey
		FeeVault       solana.PublicKey

		CollectedInsuranceFeesOutstanding utils.WrappedI80F48
		CollectedGroupFeesOutstanding     utils.WrappedI80F48

		TotalLiabilityShares utils.WrappedI80F48
		TotalAssetShares     utils.WrappedI80F48

		LastUpdate int64

		Config BankConfigRaw

		Flags BankFlags
		Emode EmodeSettingsRaw

		EmissionsMint      solana.PublicKey
		EmissionsRate      uint64
		EmissionsRemaining utils.WrappedI80F48
	}

	BankConfigRaw struct {
		AssetWeightInit  utils.WrappedI80F48
		AssetWeightMaint utils.WrappedI80F48

		LiabilityWeightInit  utils.WrappedI80F48
		LiabilityWeightMaint utils.WrappedI80F48

		DepositLimit uint64
		BorrowLimit  uint64

		InterestRateConfig InterestRateConfigRaw

		OperationalState BankOperationalState

		RiskTier                 RiskTier
		TotalAssetValueInitLimit uint64

		OracleSetup  OracleSetup
		OracleKeys   [5]solana.PublicKey
		OracleMaxAge uint16
	}
)

type BankOperationalState uint8

const (
	BankOperationalStatePaused BankOperationalState = iota
	BankOperationalStateOperational
	BankOperationalStateReduceOnly
)

func (bos BankOperationalState) String() string {
	switch bos {
	case BankOperationalStatePaused:
		return "Paused"
	case BankOperationalStateOperational:
		return "Operational"
	case BankOperationalStateReduceOnly:
		return "Reduce Only"
	default:
		return "Unknown"
	}
}

type RiskTier uint8

const (
	Collateral RiskTier = iota
	Isolated
)

func (rt RiskTier) String() string {
	switch rt {
	case Collateral:
		return "Collateral"
	case Isolated:
		return "Isolated"
	default:
		return "Unknown"
	}
}

type BankFlags uint64

const (
	BankFlagsBorrowActive                    BankFlags = 1 << 0
	BankFlagsLendingActive                   BankFlags = 1 << 1
	BankFlagsPermissionlessBadDebtSettlement BankFlags = 1 << 2
)

func NewBankConfigFromRaw(raw BankConfigRaw) BankConfig {
	oracleKeys := make([]solana.PublicKey, 0, len(raw.OracleKeys))
	for _, k := range raw.OracleKeys {
		if !k.IsZero() {
			oracleKeys = append(oracleKeys, k)
		}
	}

	return BankConfig{
		AssetWeightInit:          raw.AssetWeightInit.Decimal(),
		AssetWeightMaint:         raw.AssetWeightMaint.Decimal(),
		LiabilityWeightInit:      raw.LiabilityWeightInit.Decimal(),
		LiabilityWeightMaint:     raw.LiabilityWeightMaint.Decimal(),
		DepositLimit:             decimal.NewFromUint64(raw.DepositLimit),
		LiabilityLimit:           decimal.NewFromUint64(raw.BorrowLimit),
		InterestRateConfig:       NewInterestRateConfigFromRaw(raw.InterestRateConfig),
		OperationalState:         raw.OperationalState,
		RiskTier:                 raw.RiskTier,
		TotalAssetValueInitLimit: decimal.NewFromUint64(raw.TotalAssetValueInitLimit),
		OracleSetup:              raw.OracleSetup,
		OracleKeys:               oracleKeys,
		OracleMaxAge:             int64(raw.OracleMaxAge),
	}
}

// NewBankFromRaw builds a bank snapshot from its decoded account and a freshly
// decoded oracle price.
func NewBankFromRaw(address solana.PublicKey, raw *BankRaw, oraclePrice OraclePrice) *Bank {
	return &Bank{
		Address:                           address,
		Group:                             raw.Group,
		Mint:                              raw.Mint,
		MintDecimals:                      raw.MintDecimals,
		AssetShareValue:                   raw.AssetShareValue.Decimal(),
		LiabilityShareValue:               raw.LiabilityShareValue.Decimal(),
		LiquidityVault:                    raw.LiquidityVault,
		InsuranceVault:                    raw.InsuranceVault,
		FeeVault:                          raw.FeeVault,
		CollectedInsuranceFeesOutstanding: raw.CollectedInsuranceFeesOutstanding.Decimal(),
		CollectedGroupFeesOutstanding:     raw.CollectedGroupFeesOutstanding.Decimal(),
		TotalLiabilityShares:              raw.TotalLiabilityShares.Decimal(),
		TotalAssetShares:                  raw.TotalAssetShares.Decimal(),
		LastUpdate:                        raw.LastUpdate,
		BankConfig:                        NewBankConfigFromRaw(raw.Config),
		Flags:                             raw.Flags,
		Emode:                             NewEmodeSettingsFromRaw(raw.Emode),
		EmissionsMint:                     raw.EmissionsMint,
		EmissionsRate:                     decimal.NewFromUint64(raw.EmissionsRate),
		EmissionsRemaining:                raw.EmissionsRemaining.Decimal(),
		OraclePrice:                       oraclePrice,
	}
}

func (bc *BankConfig) Validate() error {
	assetInitW := bc.AssetWeightInit
	assetMaintW := bc.AssetWeightMaint

	if !(assetInitW.GreaterThanOrEqual(decimal.Zero) && assetInitW.LessThanOrEqual(ONE)) {
		return errors.Wrap(InvalidConfig, "asset weight init out of [0, 1]")
	}

	if !(assetMaintW.GreaterThanOrEqual(assetInitW)) {
		return errors.Wrap(InvalidConfig, "asset weight maint below init")
	}

	liabInitW := bc.LiabilityWeightInit
	liabMaintW := bc.LiabilityWeightMaint
	if liabInitW.LessThan(ONE) {
		return errors.Wrap(InvalidConfig, "liability weight init below 1")
	}

	if liabMaintW.GreaterThan(liabInitW) || liabMaintW.LessThan(ONE) {
		return errors.Wrap(InvalidConfig, "liability weight maint out of [1, init]")
	}

	if err := bc.InterestRateConfig.Validate(); err != nil {
		return err
	}

	if bc.RiskTier == Isolated && !(assetInitW.IsZero() && assetMaintW.IsZero()) {
		return errors.Wrap(InvalidConfig, "isolated bank with non-zero asset weights")
	}

	return nil
}

func (b *Bank) GetFlag(flag BankFlags) bool {
	return b.Flags&flag == flag
}

func (b *Bank) GetTotalAssetQuantity() decimal.Decimal {
	return b.TotalAssetShares.Mul(b.AssetShareValue)
}

func (b *Bank) GetTotalLiabilityQuantity() decimal.Decimal {
	return b.TotalLiabilityShares.Mul(b.LiabilityShareValue)
}

func (b *Bank) GetAssetQuantity(assetShares decimal.Decimal) decimal.Decimal {
	return assetShares.Mul(b.AssetShareValue)
}

func (b *Bank) GetLiabilityQuantity(liabilityShares decimal.Decimal) decimal.Decimal {
	return liabilityShares.Mul(b.LiabilityShareValue)
}

func (b *Bank) GetAssetShares(assetQuantity decimal.Decimal) (decimal.Decimal, error) {
	return div(assetQuantity, b.AssetShareValue)
}

func (b *Bank) GetLiabilityShares(liabilityQuantity decimal.Decimal) (decimal.Decimal, error) {
	return div(liabilityQuantity, b.LiabilityShareValue)
}

func (b *Bank) ComputeAssetUsdValue(assetShares decimal.Decimal, requirementType RequirementType, priceBias PriceBias) (decimal.Decimal, error) {
	assetWeight, err := b.GetAssetWeight(requirementType, false)
	if err != nil {
		return decimal.Zero, err
	}
	assetQuantity := b.GetAssetQuantity(assetShares)
	return b.ComputeUsdValue(assetQuantity, priceBias, requirementType.GetOraclePriceType() == TimeWeighted, assetWeight, true), nil
}

func (b *Bank) ComputeLiabilityUsdValue(liabilityShares decimal.Decimal, requirementType RequirementType, priceBias PriceBias) (decimal.Decimal, error) {
	liabilityWeight, err := b.GetLiabilityWeight(requirementType)
	if err != nil {
		return decimal.Zero, err
	}
	liabilityQuantity := b.GetLiabilityQuantity(liabilityShares)
	return b.ComputeUsdValue(liabilityQuantity, priceBias, requirementType.GetOraclePriceType() == TimeWeighted, liabilityWeight, true), nil
}

// ComputeUsdValue prices a native quantity. With scaleToBase the result is
// divided by 10^mintDecimals.
func (b *Bank) ComputeUsdValue(quantity decimal.Decimal, priceBias PriceBias, weightedPrice bool, weight decimal.Decimal, scaleToBase bool) decimal.Decimal {
	price := b.GetPrice(priceBias, weightedPrice)
	value := quantity.Mul(price).Mul(weight)
	if scaleToBase {
		return NativeToUi(value, b.MintDecimals)
	}
	return value
}

// ComputeQuantityFromUsdValue is the inverse of ComputeUsdValue with a unit
// weight and no base scaling.
func (b *Bank) ComputeQuantityFromUsdValue(usdValue decimal.Decimal, priceBias PriceBias, weightedPrice bool) (decimal.Decimal, error) {
	return div(usdValue, b.GetPrice(priceBias, weightedPrice))
}

func (b *Bank) GetPrice(priceBias PriceBias, weightedPrice bool) decimal.Decimal {
	return b.OraclePrice.GetPrice(priceBias, weightedPrice)
}

// GetAssetWeight returns the asset weight for the regime. Under Initial a
// non-zero TotalAssetValueInitLimit scales the weight down once the bank's
// total deposits are worth more than the limit.
func (b *Bank) GetAssetWeight(requirementType RequirementType, ignoreSoftLimits bool) (decimal.Decimal, error) {
	switch requirementType {
	case Initial:
		isSoftLimitDisabled := b.BankConfig.TotalAssetValueInitLimit.IsZero()
		if ignoreSoftLimits || isSoftLimitDisabled {
			return b.BankConfig.AssetWeightInit, nil
		}
		totalBankCollateralValue, err := b.ComputeAssetUsdValue(b.TotalAssetShares, Equity, PriceBiasLowest)
		if err != nil {
			return decimal.Zero, err
		}
		if totalBankCollateralValue.GreaterThan(b.BankConfig.TotalAssetValueInitLimit) {
			return b.BankConfig.TotalAssetValueInitLimit.Div(totalBankCollateralValue).Mul(b.BankConfig.AssetWeightInit), nil
		}
		return b.BankConfig.AssetWeightInit, nil
	case Maintenance:
		return b.BankConfig.AssetWeightMaint, nil
	case Equity:
		return ONE, nil
	default:
		return decimal.Zero, requirementType.Validate()
	}
}

func (b *Bank) GetLiabilityWeight(requirementType RequirementType) (decimal.Decimal, error) {
	switch requirementType {
	case Initial:
		return b.BankConfig.LiabilityWeightInit, nil
	case Maintenance:
		return b.BankConfig.LiabilityWeightMaint, nil
	case Equity:
		return ONE, nil
	default:
		return decimal.Zero, requirementType.Validate()
	}
}

// ComputeTvl is the bank's net deposits in USD at the point price.
func (b *Bank) ComputeTvl() (decimal.Decimal, error) {
	assets, err := b.ComputeAssetUsdValue(b.TotalAssetShares, Equity, PriceBiasNone)
	if err != nil {
		return decimal.Zero, err
	}
	liabilities, err := b.ComputeLiabilityUsdValue(b.TotalLiabilityShares, Equity, PriceBiasNone)
	if err != nil {
		return decimal.Zero, err
	}
	return assets.Sub(liabilities), nil
}

// ComputeUtilizationRate is zero for a bank without deposits.
func (b *Bank) ComputeUtilizationRate() decimal.Decimal {
	totalDeposits := b.GetTotalAssetQuantity()
	if totalDeposits.IsZero() {
		return decimal.Zero
	}
	return b.GetTotalLiabilityQuantity().Div(totalDeposits)
}

func (b *Bank) ComputeInterestRates() (InterestRates, error) {
	return b.BankConfig.InterestRateConfig.ComputeInterestRates(b.ComputeUtilizationRate())
}

// ComputeRemainingCapacity returns how much more can be deposited and borrowed
// before the bank's limits are hit. Interest accrued since LastUpdate but not
// yet booked is reserved twice over.
func (b *Bank) ComputeRemainingCapacity(clk clock.Clock) (depositCapacity decimal.Decimal, borrowCapacity decimal.Decimal, err error) {
	totalDeposits := b.GetTotalAssetQuantity()
	remainingCapacity := decimal.Max(decimal.Zero, b.BankConfig.DepositLimit.Sub(totalDeposits))

	totalBorrows := b.GetTotalLiabilityQuantity()
	remainingBorrowCapacity := decimal.Max(decimal.Zero, b.BankConfig.LiabilityLimit.Sub(totalBorrows))

	durationSinceLastAccrual := decimal.NewFromInt(clk.Now().Unix() - b.LastUpdate)
	secondsPerYear := decimal.NewFromInt(SECONDS_PER_YEAR)

	rates, err := b.ComputeInterestRates()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	outstandingLendingInterest := rates.LendingRate.Mul(durationSinceLastAccrual).Div(secondsPerYear).Mul(totalDeposits)
	outstandingBorrowInterest := rates.BorrowingRate.Mul(durationSinceLastAccrual).Div(secondsPerYear).Mul(totalBorrows)

	two := decimal.NewFromInt(2)
	depositCapacity = remainingCapacity.Sub(outstandingLendingInterest.Mul(two))
	borrowCapacity = remainingBorrowCapacity.Sub(outstandingBorrowInterest.Mul(two))
	return depositCapacity, borrowCapacity, nil
}

func (b *Bank) IsOracleStale(clk clock.Clock) bool {
	return b.OraclePrice.IsStale(clk, b.BankConfig.OracleMaxAge)
}
