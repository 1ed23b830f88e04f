package core

import (
	"testing"
	"time"

	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/facebookgo/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOracleTimestamp = 1700000000

func testInterestRateConfig() InterestRateConfig {
	return InterestRateConfig{
		OptimalUtilizationRate: d("0.8"),
		PlateauInterestRate:    d("0.1"),
		MaxInterestRate:        d("1"),
		InsuranceFeeFixedApr:   d("0.01"),
		InsuranceIrFee:         d("0.05"),
		ProtocolFixedFeeApr:    d("0.02"),
		ProtocolIrFee:          d("0.1"),
	}
}

// newTestBank returns a 6 decimal collateral bank quoted at price ± confidence
// on both the realtime and the weighted feed.
func newTestBank(price, confidence string) *Bank {
	p := NewPriceWithConfidence(d(price), d(confidence), d("0.1"))
	return &Bank{
		Address:              solana.NewWallet().PublicKey(),
		Mint:                 solana.NewWallet().PublicKey(),
		MintDecimals:         6,
		AssetShareValue:      ONE,
		LiabilityShareValue:  ONE,
		TotalAssetShares:     decimal.Zero,
		TotalLiabilityShares: decimal.Zero,
		LastUpdate:           testOracleTimestamp,
		BankConfig: BankConfig{
			AssetWeightInit:      d("0.8"),
			AssetWeightMaint:     d("0.9"),
			LiabilityWeightInit:  d("1.25"),
			LiabilityWeightMaint: d("1.1"),
			DepositLimit:         d("1000000000000"),
			LiabilityLimit:       d("1000000000000"),
			InterestRateConfig:   testInterestRateConfig(),
			OperationalState:     BankOperationalStateOperational,
			RiskTier:             Collateral,
			OracleSetup:          PythPushOracle,
		},
		OraclePrice: OraclePrice{
			PriceRealtime: p,
			PriceWeighted: p,
			Timestamp:     testOracleTimestamp,
			OracleSetup:   PythPushOracle,
		},
	}
}

func wrapped(s string) utils.WrappedI80F48 {
	return utils.NewWrappedI80F48(utils.MustI80F48FromDecimal(d(s)))
}

func TestComputeAssetUsdValue(t *testing.T) {
	bank := newTestBank("1", "0")
	shares := d("1000000")

	tests := []struct {
		name            string
		requirementType RequirementType
		expected        decimal.Decimal
	}{
		{name: "initial", requirementType: Initial, expected: d("0.8")},
		{name: "maintenance", requirementType: Maintenance, expected: d("0.9")},
		{name: "equity", requirementType: Equity, expected: d("1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := bank.ComputeAssetUsdValue(shares, tt.requirementType, PriceBiasLowest)
			require.NoError(t, err)
			assertDecimal(t, tt.expected, value)
		})
	}
}

func TestComputeLiabilityUsdValue(t *testing.T) {
	bank := newTestBank("2", "0.1")
	shares := d("1000000")

	tests := []struct {
		name            string
		requirementType RequirementType
		priceBias       PriceBias
		expected        decimal.Decimal
	}{
		{name: "initial highest", requirementType: Initial, priceBias: PriceBiasHighest, expected: d("2.625")},
		{name: "maintenance highest", requirementType: Maintenance, priceBias: PriceBiasHighest, expected: d("2.31")},
		{name: "equity none", requirementType: Equity, priceBias: PriceBiasNone, expected: d("2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := bank.ComputeLiabilityUsdValue(shares, tt.requirementType, tt.priceBias)
			require.NoError(t, err)
			assertDecimal(t, tt.expected, value)
		})
	}
}

func TestComputeUsdValueScaling(t *testing.T) {
	bank := newTestBank("3", "0")

	assertDecimal(t, d("6000000"), bank.ComputeUsdValue(d("2000000"), PriceBiasNone, false, ONE, false))
	assertDecimal(t, d("6"), bank.ComputeUsdValue(d("2000000"), PriceBiasNone, false, ONE, true))

	quantity, err := bank.ComputeQuantityFromUsdValue(d("6"), PriceBiasNone, false)
	require.NoError(t, err)
	assertDecimal(t, d("2"), quantity)
}

func TestInvalidRequirementType(t *testing.T) {
	bank := newTestBank("1", "0")
	invalid := RequirementType(9)

	_, err := bank.GetAssetWeight(invalid, false)
	assert.ErrorIs(t, err, ErrInvalidMarginRequirementType)

	_, err = bank.GetLiabilityWeight(invalid)
	assert.ErrorIs(t, err, ErrInvalidMarginRequirementType)

	_, err = bank.ComputeAssetUsdValue(ONE, invalid, PriceBiasNone)
	assert.ErrorIs(t, err, ErrInvalidMarginRequirementType)
}

func TestRequirementPriceSelection(t *testing.T) {
	bank := newTestBank("1", "0")
	bank.OraclePrice.PriceWeighted = NewPriceWithConfidence(d("2"), decimal.Zero, d("0.1"))

	tests := []struct {
		requirementType RequirementType
		priceType       OraclePriceType
		assetValue      decimal.Decimal
		liabilityValue  decimal.Decimal
	}{
		{requirementType: Initial, priceType: TimeWeighted, assetValue: d("1.6"), liabilityValue: d("2.5")},
		{requirementType: Maintenance, priceType: RealTime, assetValue: d("0.9"), liabilityValue: d("1.1")},
		{requirementType: Equity, priceType: RealTime, assetValue: d("1"), liabilityValue: d("1")},
	}

	for _, tt := range tests {
		t.Run(tt.requirementType.String(), func(t *testing.T) {
			assert.Equal(t, tt.priceType, tt.requirementType.GetOraclePriceType())

			assets, err := bank.ComputeAssetUsdValue(d("1000000"), tt.requirementType, PriceBiasNone)
			require.NoError(t, err)
			assertDecimal(t, tt.assetValue, assets)

			liabilities, err := bank.ComputeLiabilityUsdValue(d("1000000"), tt.requirementType, PriceBiasNone)
			require.NoError(t, err)
			assertDecimal(t, tt.liabilityValue, liabilities)
		})
	}
}

func TestBankWithEmodeWeights(t *testing.T) {
	tests := []struct {
		name          string
		weights       EmodeWeights
		expectedInit  decimal.Decimal
		expectedMaint decimal.Decimal
	}{
		{
			name:          "better weights",
			weights:       EmodeWeights{AssetWeightInit: d("0.9"), AssetWeightMaint: d("0.95")},
			expectedInit:  d("0.9"),
			expectedMaint: d("0.95"),
		},
		{
			name:          "worse weights",
			weights:       EmodeWeights{AssetWeightInit: d("0.5"), AssetWeightMaint: d("0.6")},
			expectedInit:  d("0.8"),
			expectedMaint: d("0.9"),
		},
		{
			name:          "mixed",
			weights:       EmodeWeights{AssetWeightInit: d("0.85"), AssetWeightMaint: d("0.5")},
			expectedInit:  d("0.85"),
			expectedMaint: d("0.9"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := newTestBank("1", "0")
			emode := bank.WithEmodeWeights(tt.weights)

			assertDecimal(t, tt.expectedInit, emode.AssetWeightInit)
			assertDecimal(t, tt.expectedMaint, emode.AssetWeightMaint)
			assertDecimal(t, d("1.25"), emode.LiabilityWeightInit)
			assert.Equal(t, bank.Address, emode.Address)

			assertDecimal(t, d("0.8"), bank.AssetWeightInit)
			assertDecimal(t, d("0.9"), bank.AssetWeightMaint)
		})
	}
}

func TestShareConversion(t *testing.T) {
	bank := newTestBank("1", "0")
	bank.AssetShareValue = d("1.5")
	bank.LiabilityShareValue = d("1.25")

	quantity := bank.GetAssetQuantity(d("1000"))
	assertDecimal(t, d("1500"), quantity)
	shares, err := bank.GetAssetShares(quantity)
	require.NoError(t, err)
	assertDecimal(t, d("1000"), shares)

	quantity = bank.GetLiabilityQuantity(d("1000"))
	assertDecimal(t, d("1250"), quantity)
	shares, err = bank.GetLiabilityShares(quantity)
	require.NoError(t, err)
	assertDecimal(t, d("1000"), shares)

	bank.AssetShareValue = decimal.Zero
	_, err = bank.GetAssetShares(ONE)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestAssetWeightSoftLimit(t *testing.T) {
	bank := newTestBank("1", "0")
	bank.TotalAssetShares = d("1000000000")
	bank.TotalAssetValueInitLimit = d("500")

	weight, err := bank.GetAssetWeight(Initial, false)
	require.NoError(t, err)
	assertDecimal(t, d("0.4"), weight)

	weight, err = bank.GetAssetWeight(Initial, true)
	require.NoError(t, err)
	assertDecimal(t, d("0.8"), weight)

	weight, err = bank.GetAssetWeight(Maintenance, false)
	require.NoError(t, err)
	assertDecimal(t, d("0.9"), weight)

	bank.TotalAssetValueInitLimit = d("2000")
	weight, err = bank.GetAssetWeight(Initial, false)
	require.NoError(t, err)
	assertDecimal(t, d("0.8"), weight)
}

func TestComputeUtilizationRate(t *testing.T) {
	bank := newTestBank("1", "0")
	assert.True(t, bank.ComputeUtilizationRate().IsZero())

	rates, err := bank.ComputeInterestRates()
	require.NoError(t, err)
	assert.True(t, rates.LendingRate.IsZero())
	assertDecimal(t, d("0.03"), rates.BorrowingRate)

	bank.TotalAssetShares = d("1000")
	bank.TotalLiabilityShares = d("400")
	assertDecimal(t, d("0.4"), bank.ComputeUtilizationRate())

	rates, err = bank.ComputeInterestRates()
	require.NoError(t, err)
	assertDecimal(t, d("0.02"), rates.LendingRate)
	assertDecimal(t, d("0.0875"), rates.BorrowingRate)
}

func TestComputeTvl(t *testing.T) {
	bank := newTestBank("2", "0.1")
	bank.TotalAssetShares = d("3000000")
	bank.TotalLiabilityShares = d("1000000")

	tvl, err := bank.ComputeTvl()
	require.NoError(t, err)
	assertDecimal(t, d("4"), tvl)
}

func TestComputeRemainingCapacity(t *testing.T) {
	bank := newTestBank("1", "0")
	bank.TotalAssetShares = d("1000")
	bank.TotalLiabilityShares = d("400")
	bank.DepositLimit = d("1500")
	bank.LiabilityLimit = d("1000")

	clk := clock.NewMock()
	setMockClock(clk, bank.LastUpdate)

	deposit, borrow, err := bank.ComputeRemainingCapacity(clk)
	require.NoError(t, err)
	assertDecimal(t, d("500"), deposit)
	assertDecimal(t, d("600"), borrow)

	clk.Add(SECONDS_PER_YEAR * time.Second)
	deposit, borrow, err = bank.ComputeRemainingCapacity(clk)
	require.NoError(t, err)
	assertDecimal(t, d("460"), deposit)
	assertDecimal(t, d("530"), borrow)
}

func TestBankIsOracleStale(t *testing.T) {
	bank := newTestBank("1", "0")
	clk := clock.NewMock()
	setMockClock(clk, testOracleTimestamp+120)

	assert.False(t, bank.IsOracleStale(clk))

	bank.OracleMaxAge = 60
	assert.True(t, bank.IsOracleStale(clk))

	bank.OracleMaxAge = 120
	assert.False(t, bank.IsOracleStale(clk))
}

func TestBankConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *BankConfig)
		err    error
	}{
		{name: "valid", modify: func(c *BankConfig) {}},
		{name: "asset weight above one", modify: func(c *BankConfig) { c.AssetWeightInit = d("1.1") }, err: InvalidConfig},
		{name: "maint below init", modify: func(c *BankConfig) { c.AssetWeightMaint = d("0.7") }, err: InvalidConfig},
		{name: "liability init below one", modify: func(c *BankConfig) { c.LiabilityWeightInit = d("0.9") }, err: InvalidConfig},
		{name: "liability maint above init", modify: func(c *BankConfig) { c.LiabilityWeightMaint = d("1.3") }, err: InvalidConfig},
		{name: "isolated with weights", modify: func(c *BankConfig) { c.RiskTier = Isolated }, err: InvalidConfig},
		{name: "bad curve", modify: func(c *BankConfig) { c.OptimalUtilizationRate = decimal.Zero }, err: ErrOptimalUr},
		{
			name: "isolated without weights",
			modify: func(c *BankConfig) {
				c.RiskTier = Isolated
				c.AssetWeightInit = decimal.Zero
				c.AssetWeightMaint = decimal.Zero
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestBank("1", "0").BankConfig
			tt.modify(&config)
			err := config.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewBankFromRaw(t *testing.T) {
	oracleKey := solana.NewWallet().PublicKey()
	raw := &BankRaw{
		Mint:                 solana.NewWallet().PublicKey(),
		MintDecimals:         9,
		AssetShareValue:      wrapped("1.5"),
		LiabilityShareValue:  wrapped("1.25"),
		TotalAssetShares:     wrapped("1000"),
		TotalLiabilityShares: wrapped("250"),
		LastUpdate:           testOracleTimestamp,
		Config: BankConfigRaw{
			AssetWeightInit:      wrapped("0.5"),
			AssetWeightMaint:     wrapped("0.75"),
			LiabilityWeightInit:  wrapped("1.5"),
			LiabilityWeightMaint: wrapped("1.25"),
			DepositLimit:         1_000_000,
			BorrowLimit:          500_000,
			InterestRateConfig: InterestRateConfigRaw{
				OptimalUtilizationRate: wrapped("0.5"),
				PlateauInterestRate:    wrapped("0.25"),
				MaxInterestRate:        wrapped("2"),
			},
			OperationalState: BankOperationalStateOperational,
			RiskTier:         Collateral,
			OracleSetup:      PythLegacy,
			OracleKeys:       [5]solana.PublicKey{oracleKey},
			OracleMaxAge:     60,
		},
		Flags:              BankFlagsLendingActive,
		EmissionsRate:      1000,
		EmissionsRemaining: wrapped("42"),
	}
	raw.Emode.EmodeTag = 7
	raw.Emode.Flags = EmodeFlagsOn
	raw.Emode.Entries[1] = EmodeEntryRaw{
		CollateralBankEmodeTag: 3,
		AssetWeightInit:        wrapped("0.9"),
		AssetWeightMaint:       wrapped("0.95"),
	}
	address := solana.NewWallet().PublicKey()
	price := OraclePrice{PriceRealtime: NewPriceWithConfidence(d("3"), decimal.Zero, d("0.05"))}

	bank := NewBankFromRaw(address, raw, price)
	assert.Equal(t, address, bank.Address)
	assert.Equal(t, uint8(9), bank.MintDecimals)
	assertDecimal(t, d("1.5"), bank.AssetShareValue)
	assertDecimal(t, d("1.25"), bank.LiabilityShareValue)
	assertDecimal(t, d("1500"), bank.GetTotalAssetQuantity())
	assertDecimal(t, d("312.5"), bank.GetTotalLiabilityQuantity())
	assertDecimal(t, d("0.5"), bank.AssetWeightInit)
	assertDecimal(t, d("1.25"), bank.LiabilityWeightMaint)
	assertDecimal(t, d("500000"), bank.LiabilityLimit)
	assertDecimal(t, d("0.25"), bank.PlateauInterestRate)
	assert.Equal(t, []solana.PublicKey{oracleKey}, bank.OracleKeys)
	assert.Equal(t, int64(60), bank.OracleMaxAge)
	assert.True(t, bank.GetFlag(BankFlagsLendingActive))
	assert.False(t, bank.GetFlag(BankFlagsBorrowActive))
	assertDecimal(t, d("1000"), bank.EmissionsRate)
	assertDecimal(t, d("42"), bank.EmissionsRemaining)
	assertDecimal(t, d("3"), bank.GetPrice(PriceBiasNone, false))
	require.NoError(t, bank.BankConfig.Validate())

	assert.Equal(t, EmodeTag(7), bank.Emode.EmodeTag)
	assert.Equal(t, EmodeFlagsOn, bank.Emode.Flags)
	require.Len(t, bank.Emode.Entries, 1)
	assert.Equal(t, EmodeTag(3), bank.Emode.Entries[0].CollateralBankEmodeTag)
	assertDecimal(t, d("0.9"), bank.Emode.Entries[0].AssetWeightInit)
	assertDecimal(t, d("0.95"), bank.Emode.Entries[0].AssetWeightMaint)
}
