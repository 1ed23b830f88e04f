package core

import (
	"slices"

	"github.com/facebookgo/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	RiskParams struct {
		// VolatilityFactor scales free collateral in the borrow and withdraw bounds.
		VolatilityFactor    decimal.Decimal `json:"volatilityFactor" yaml:"volatilityFactor"`
		LiquidationDiscount decimal.Decimal `json:"liquidationDiscount" yaml:"liquidationDiscount"`
	}

	// RiskEngine evaluates one account against one bank snapshot. It holds no
	// mutable state and is safe for concurrent use.
	RiskEngine struct {
		Account *Account
		Banks   *BankSnapshot

		log               Log
		clk               clock.Clock
		params            RiskParams
		rejectStaleOracle bool
	}

	OptionFunc func(r *RiskEngine)
)

func DefaultRiskParams() RiskParams {
	return RiskParams{
		VolatilityFactor:    DEFAULT_VOLATILITY_FACTOR,
		LiquidationDiscount: DEFAULT_LIQUIDATION_DISCOUNT,
	}
}

func WithClock(clk clock.Clock) OptionFunc {
	return func(r *RiskEngine) {
		r.clk = clk
	}
}

func WithRiskParams(params RiskParams) OptionFunc {
	return func(r *RiskEngine) {
		r.params = params
	}
}

// WithRejectStaleOracles makes every computation touching a bank with a stale
// oracle fail with ErrStaleOracle instead of logging a warning.
func WithRejectStaleOracles() OptionFunc {
	return func(r *RiskEngine) {
		r.rejectStaleOracle = true
	}
}

func NewRiskEngine(log Log, account *Account, banks *BankSnapshot, opts ...OptionFunc) *RiskEngine {
	r := &RiskEngine{
		Account: account,
		Banks:   banks,
		log:     log,
		clk:     clock.New(),
		params:  DefaultRiskParams(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RiskEngine) getBank(address solana.PublicKey) (*Bank, error) {
	bank, err := r.Banks.GetBank(address)
	if err != nil {
		return nil, err
	}
	if bank.IsOracleStale(r.clk) {
		if r.rejectStaleOracle {
			return nil, errors.Wrapf(ErrStaleOracle, "bank %s, oracle timestamp %d", address, bank.OraclePrice.Timestamp)
		}
		r.log.Warn().
			Str("bank", address.String()).
			Int64("oracleTimestamp", bank.OraclePrice.Timestamp).
			Int64("maxAge", bank.OracleMaxAge).
			Msg("oracle price is stale")
	}
	return bank, nil
}

// ComputeHealthComponents sums the price biased, weighted value of every
// active balance except those in excludedBanks.
func (r *RiskEngine) ComputeHealthComponents(requirementType RequirementType, excludedBanks ...solana.PublicKey) (decimal.Decimal, decimal.Decimal, error) {
	return r.computeHealthComponents(requirementType, true, excludedBanks)
}

// ComputeHealthComponentsWithoutBias values every active balance at the point
// price.
func (r *RiskEngine) ComputeHealthComponentsWithoutBias(requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	return r.computeHealthComponents(requirementType, false, nil)
}

func (r *RiskEngine) computeHealthComponents(requirementType RequirementType, biased bool, excludedBanks []solana.PublicKey) (decimal.Decimal, decimal.Decimal, error) {
	if err := requirementType.Validate(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	totalAssets := decimal.Zero
	totalLiabilities := decimal.Zero
	for _, balance := range r.Account.ActiveBalances() {
		if slices.Contains(excludedBanks, balance.BankPk) {
			continue
		}
		bank, err := r.getBank(balance.BankPk)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}

		var assets, liabilities decimal.Decimal
		if biased {
			assets, liabilities, err = balance.GetUsdValueWithPriceBias(bank, requirementType)
		} else {
			assets, liabilities, err = balance.ComputeUsdValue(bank, requirementType)
		}
		if err != nil {
			return decimal.Zero, decimal.Zero, errors.Wrapf(err, "value balance in %s", balance.BankPk)
		}
		totalAssets = totalAssets.Add(assets)
		totalLiabilities = totalLiabilities.Add(liabilities)
	}
	return totalAssets, totalLiabilities, nil
}

// ComputeHealthFactor is GetAccountHealth over the biased components.
func (r *RiskEngine) ComputeHealthFactor(requirementType RequirementType) (decimal.Decimal, error) {
	totalAssets, totalLiabilities, err := r.ComputeHealthComponents(requirementType)
	if err != nil {
		return decimal.Zero, err
	}
	return GetAccountHealth(totalAssets, totalLiabilities), nil
}

// CheckAccountHealth fails with RiskEngineRejected when weighted assets do not
// cover weighted liabilities, or when the risk tier rules are broken.
func (r *RiskEngine) CheckAccountHealth(requirementType RequirementType) error {
	totalAssets, totalLiabilities, err := r.ComputeHealthComponents(requirementType)
	if err != nil {
		return err
	}
	if totalAssets.LessThan(totalLiabilities) {
		return errors.Wrapf(RiskEngineRejected, "%s: assets %s < liabilities %s", requirementType, totalAssets, totalLiabilities)
	}
	return r.CheckAccountRiskTiers()
}

// CanBeLiquidated reports whether maintenance assets fall strictly short of
// maintenance liabilities.
func (r *RiskEngine) CanBeLiquidated() (bool, error) {
	assets, liabilities, err := r.ComputeHealthComponents(Maintenance)
	if err != nil {
		return false, err
	}
	return assets.LessThan(liabilities), nil
}

func (r *RiskEngine) ComputeFreeCollateral() (decimal.Decimal, error) {
	signed, err := r.ComputeSignedFreeCollateral()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(decimal.Zero, signed), nil
}

// ComputeSignedFreeCollateral is initial assets minus initial liabilities,
// negative for an account below its initial requirement.
func (r *RiskEngine) ComputeSignedFreeCollateral() (decimal.Decimal, error) {
	assets, liabilities, err := r.ComputeHealthComponents(Initial)
	if err != nil {
		return decimal.Zero, err
	}
	return assets.Sub(liabilities), nil
}

func (r *RiskEngine) ComputeAccountValue() (decimal.Decimal, error) {
	assets, liabilities, err := r.ComputeHealthComponentsWithoutBias(Equity)
	if err != nil {
		return decimal.Zero, err
	}
	return assets.Sub(liabilities), nil
}

// ComputeNetApr weights each position's rate by its share of the account's
// net value. An account with zero net value divides by one instead.
func (r *RiskEngine) ComputeNetApr() (decimal.Decimal, error) {
	totalUsdValue, err := r.ComputeAccountValue()
	if err != nil {
		return decimal.Zero, err
	}
	if totalUsdValue.IsZero() {
		r.log.Warn().Str("account", r.Account.Address.String()).Msg("zero net account value, weighting rates by 1")
		totalUsdValue = ONE
	}

	weightedApr := decimal.Zero
	for _, balance := range r.Account.ActiveBalances() {
		bank, err := r.getBank(balance.BankPk)
		if err != nil {
			return decimal.Zero, err
		}
		rates, err := bank.ComputeInterestRates()
		if err != nil {
			return decimal.Zero, err
		}
		assets, liabilities, err := balance.ComputeUsdValue(bank, Equity)
		if err != nil {
			return decimal.Zero, err
		}

		weightedApr = weightedApr.
			Add(rates.LendingRate.Mul(assets).Div(totalUsdValue)).
			Sub(rates.BorrowingRate.Mul(liabilities).Div(totalUsdValue))
	}
	return weightedApr, nil
}

func (r *RiskEngine) ComputeNetApy() (decimal.Decimal, error) {
	apr, err := r.ComputeNetApr()
	if err != nil {
		return decimal.Zero, err
	}
	return AprToApy(apr), nil
}

// ComputeMaxBorrowForBank returns, in ui units of the bank's mint, how much
// more the account could borrow before breaking its initial requirement:
//
//	ucb = min(initial value of the deposit in this bank, free collateral)
//	max = ucb / (price_lowest * asset_weight) + (fc - ucb) / (price_highest * liability_weight)
//
// Collateral the account would receive by liquidating others is not counted.
func (r *RiskEngine) ComputeMaxBorrowForBank(bankPk solana.PublicKey) (decimal.Decimal, error) {
	bank, err := r.getBank(bankPk)
	if err != nil {
		return decimal.Zero, err
	}

	restricted, err := r.isIsolatedBorrowRestricted(bank)
	if err != nil {
		return decimal.Zero, err
	}
	if restricted {
		r.log.Debug().Str("bank", bankPk.String()).Msg("isolated tier constraint, falling back to max withdraw")
		return r.ComputeMaxWithdrawForBank(bankPk)
	}

	balance := r.Account.GetBalance(bankPk)

	freeCollateral, err := r.ComputeFreeCollateral()
	if err != nil {
		return decimal.Zero, err
	}
	freeCollateral = freeCollateral.Mul(r.params.VolatilityFactor)

	initCollateralForBank, err := bank.ComputeAssetUsdValue(balance.AssetShares, Initial, PriceBiasLowest)
	if err != nil {
		return decimal.Zero, err
	}
	untiedCollateralForBank := decimal.Min(initCollateralForBank, freeCollateral)

	priceLowestBias := bank.GetPrice(PriceBiasLowest, true)
	priceHighestBias := bank.GetPrice(PriceBiasHighest, true)
	assetWeight, err := bank.GetAssetWeight(Initial, false)
	if err != nil {
		return decimal.Zero, err
	}
	liabWeight, err := bank.GetLiabilityWeight(Initial)
	if err != nil {
		return decimal.Zero, err
	}

	r.log.Debug().
		Str("bank", bankPk.String()).
		Str("freeCollateral", freeCollateral.String()).
		Str("untiedCollateral", untiedCollateralForBank.String()).
		Str("assetWeight", assetWeight.String()).
		Str("liabilityWeight", liabWeight.String()).
		Str("priceLowest", priceLowestBias.String()).
		Str("priceHighest", priceHighestBias.String()).
		Msg("max borrow inputs")

	borrowable, err := div(freeCollateral.Sub(untiedCollateralForBank), priceHighestBias.Mul(liabWeight))
	if err != nil {
		return decimal.Zero, err
	}

	if assetWeight.IsZero() {
		assetsUi, _ := balance.ComputeQuantityUi(bank)
		return assetsUi.Add(borrowable), nil
	}

	withdrawable, err := div(untiedCollateralForBank, priceLowestBias.Mul(assetWeight))
	if err != nil {
		return decimal.Zero, err
	}
	return withdrawable.Add(borrowable), nil
}

// ComputeMaxBorrowForBankWithEmode is ComputeMaxBorrowForBank with collateral
// banks tagged weights.CollateralTag valued at their e-mode weights.
func (r *RiskEngine) ComputeMaxBorrowForBankWithEmode(bankPk solana.PublicKey, weights EmodeWeights) (decimal.Decimal, error) {
	return r.WithEmodeWeights(weights).ComputeMaxBorrowForBank(bankPk)
}

// WithEmodeWeights returns an engine over the same account whose snapshot
// carries the e-mode weights. The receiver is not modified.
func (r *RiskEngine) WithEmodeWeights(weights EmodeWeights) *RiskEngine {
	engine := *r
	engine.Banks = r.Banks.WithEmodeWeights(weights)
	return &engine
}

func (r *RiskEngine) activeEmodePositions() (liabilities, collateral []solana.PublicKey) {
	for _, balance := range r.Account.ActiveBalances() {
		if balance.LiabilityShares.IsPositive() {
			liabilities = append(liabilities, balance.BankPk)
		}
		if balance.AssetShares.IsPositive() {
			collateral = append(collateral, balance.BankPk)
		}
	}
	return liabilities, collateral
}

// ComputeActiveEmodePairs returns the snapshot's e-mode pairs that apply to
// the account's current positions.
func (r *RiskEngine) ComputeActiveEmodePairs() []EmodePair {
	liabilities, collateral := r.activeEmodePositions()
	return ComputeActiveEmodePairs(r.Banks.EmodePairs(), liabilities, collateral)
}

// ComputeEmodeImpacts reports how borrowing, supplying, repaying or
// withdrawing in each of banks would change the account's e-mode state.
func (r *RiskEngine) ComputeEmodeImpacts(banks []solana.PublicKey) map[solana.PublicKey]ActionEmodeImpact {
	liabilities, collateral := r.activeEmodePositions()
	return ComputeEmodeImpacts(r.Banks.EmodePairs(), liabilities, collateral, banks)
}

// isIsolatedBorrowRestricted reports whether a borrow from bank would leave the
// account holding isolated debt next to another liability.
func (r *RiskEngine) isIsolatedBorrowRestricted(bank *Bank) (bool, error) {
	if bank.RiskTier == Isolated {
		_, otherLiabilities, err := r.ComputeHealthComponents(Equity, bank.Address)
		if err != nil {
			return false, err
		}
		if !otherLiabilities.IsZero() {
			return true, nil
		}
	}

	for _, balance := range r.Account.ActiveBalances() {
		if !balance.LiabilityShares.IsPositive() || balance.BankPk.Equals(bank.Address) {
			continue
		}
		liabilityBank, err := r.getBank(balance.BankPk)
		if err != nil {
			return false, err
		}
		if liabilityBank.RiskTier == Isolated {
			return true, nil
		}
	}
	return false, nil
}

// ComputeMaxWithdrawForBank returns, in ui units, how much of the deposit in
// bank can be withdrawn without breaking the initial requirement.
//
// A deposit with a zero initial asset weight is always fully withdrawable,
// even for an account already below its initial requirement, and a bank being
// retired (zero initial, non-zero maintenance weight) is not bounded by its
// maintenance collateral. The on-chain program may refuse such withdrawals.
func (r *RiskEngine) ComputeMaxWithdrawForBank(bankPk solana.PublicKey) (decimal.Decimal, error) {
	bank, err := r.getBank(bankPk)
	if err != nil {
		return decimal.Zero, err
	}

	balance := r.Account.GetBalance(bankPk)
	entireBalance, _ := balance.ComputeQuantityUi(bank)

	initAssetWeight, err := bank.GetAssetWeight(Initial, false)
	if err != nil {
		return decimal.Zero, err
	}
	// a deposit without initial weight backs nothing
	if initAssetWeight.IsZero() {
		return entireBalance, nil
	}

	freeCollateral, err := r.ComputeFreeCollateral()
	if err != nil {
		return decimal.Zero, err
	}
	initCollateralForBank, err := bank.ComputeAssetUsdValue(balance.AssetShares, Initial, PriceBiasLowest)
	if err != nil {
		return decimal.Zero, err
	}
	_, liabilitiesInit, err := r.ComputeHealthComponents(Initial)
	if err != nil {
		return decimal.Zero, err
	}

	if liabilitiesInit.IsZero() || initCollateralForBank.LessThanOrEqual(freeCollateral) {
		return entireBalance, nil
	}

	initUntiedCollateralForBank := freeCollateral.Mul(r.params.VolatilityFactor)
	priceLowestBias := bank.GetPrice(PriceBiasLowest, true)

	r.log.Debug().
		Str("bank", bankPk.String()).
		Str("freeCollateral", freeCollateral.String()).
		Str("initCollateral", initCollateralForBank.String()).
		Str("assetWeight", initAssetWeight.String()).
		Str("priceLowest", priceLowestBias.String()).
		Msg("max withdraw inputs")

	return div(initUntiedCollateralForBank, priceLowestBias.Mul(initAssetWeight))
}

// ComputeLiquidationPriceForBank returns the price of the bank's asset at which
// the account hits its maintenance requirement, all other prices fixed. ok is
// false when no such price exists.
func (r *RiskEngine) ComputeLiquidationPriceForBank(bankPk solana.PublicKey) (decimal.Decimal, bool, error) {
	bank, err := r.getBank(bankPk)
	if err != nil {
		return decimal.Zero, false, err
	}
	balance := r.Account.GetBalance(bankPk)
	if !balance.Active {
		return decimal.Zero, false, nil
	}

	isLending := balance.LiabilityShares.IsZero()
	assetsUi, liabilitiesUi := balance.ComputeQuantityUi(bank)
	amount := liabilitiesUi
	if isLending {
		amount = assetsUi
	}
	return r.computeLiquidationPrice(bank, isLending, amount)
}

// ComputeLiquidationPriceForBankAmount is ComputeLiquidationPriceForBank for a
// hypothetical position of amount ui units on the given side.
func (r *RiskEngine) ComputeLiquidationPriceForBankAmount(bankPk solana.PublicKey, isLending bool, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	bank, err := r.getBank(bankPk)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !r.Account.GetBalance(bankPk).Active {
		return decimal.Zero, false, nil
	}
	return r.computeLiquidationPrice(bank, isLending, amount)
}

func (r *RiskEngine) computeLiquidationPrice(bank *Bank, isLending bool, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	assets, liabilities, err := r.ComputeHealthComponents(Maintenance, bank.Address)
	if err != nil {
		return decimal.Zero, false, err
	}

	var liquidationPrice decimal.Decimal
	if isLending {
		if liabilities.IsZero() {
			return decimal.Zero, false, nil
		}
		assetWeight, err := bank.GetAssetWeight(Maintenance, false)
		if err != nil {
			return decimal.Zero, false, err
		}
		denominator := amount.Mul(assetWeight)
		if denominator.IsZero() {
			return decimal.Zero, false, nil
		}
		priceConfidence := bank.GetPrice(PriceBiasNone, false).Sub(bank.GetPrice(PriceBiasLowest, false))
		liquidationPrice = liabilities.Sub(assets).Div(denominator).Add(priceConfidence)
	} else {
		liabWeight, err := bank.GetLiabilityWeight(Maintenance)
		if err != nil {
			return decimal.Zero, false, err
		}
		denominator := amount.Mul(liabWeight)
		if denominator.IsZero() {
			return decimal.Zero, false, nil
		}
		priceConfidence := bank.GetPrice(PriceBiasHighest, false).Sub(bank.GetPrice(PriceBiasNone, false))
		liquidationPrice = assets.Sub(liabilities).Div(denominator).Sub(priceConfidence)
	}

	if liquidationPrice.IsNegative() {
		return decimal.Zero, false, nil
	}
	return liquidationPrice, true, nil
}

// ComputeMaxLiquidatableAssetAmount returns, in ui units of the asset bank, the
// most collateral a liquidator may seize to bring maintenance health back to
// zero. It is bounded by the collateral held and by the liability outstanding.
func (r *RiskEngine) ComputeMaxLiquidatableAssetAmount(assetBankPk, liabilityBankPk solana.PublicKey) (decimal.Decimal, error) {
	assetBank, err := r.getBank(assetBankPk)
	if err != nil {
		return decimal.Zero, err
	}
	liabilityBank, err := r.getBank(liabilityBankPk)
	if err != nil {
		return decimal.Zero, err
	}

	assets, liabilities, err := r.ComputeHealthComponents(Maintenance)
	if err != nil {
		return decimal.Zero, err
	}
	currentHealth := assets.Sub(liabilities)

	priceAssetLower := assetBank.GetPrice(PriceBiasLowest, false)
	assetMaintWeight := assetBank.AssetWeightMaint
	priceLiabHighest := liabilityBank.GetPrice(PriceBiasHighest, false)
	liabMaintWeight := liabilityBank.LiabilityWeightMaint
	liquidationDiscount := r.params.LiquidationDiscount

	underwaterMaintUsdValue, err := div(currentHealth, assetMaintWeight.Sub(liabMaintWeight.Mul(liquidationDiscount)))
	if err != nil {
		return decimal.Zero, err
	}

	assetsAmountUi, _ := r.Account.GetBalance(assetBankPk).ComputeQuantityUi(assetBank)
	assetsUsdValue := assetsAmountUi.Mul(priceAssetLower)

	_, liabilitiesAmountUi := r.Account.GetBalance(liabilityBankPk).ComputeQuantityUi(liabilityBank)
	liabUsdValue := liabilitiesAmountUi.Mul(liquidationDiscount).Mul(priceLiabHighest)

	maxLiquidatableUsdValue := decimal.Min(assetsUsdValue, underwaterMaintUsdValue, liabUsdValue)

	r.log.Debug().
		Str("health", currentHealth.String()).
		Str("underwater", underwaterMaintUsdValue.String()).
		Str("collateral", assetsUsdValue.String()).
		Str("liability", liabUsdValue.String()).
		Msg("max liquidatable usd value")

	return div(maxLiquidatableUsdValue, priceAssetLower)
}

// CheckAccountRiskTiers rejects an account that holds isolated debt next to
// any other liability.
func (r *RiskEngine) CheckAccountRiskTiers() error {
	balancesWithLiabilities := []*Bank{}
	for _, balance := range r.Account.ActiveBalances() {
		if balance.IsEmpty(BalanceSideLiabilities) {
			continue
		}
		bank, err := r.getBank(balance.BankPk)
		if err != nil {
			return err
		}
		balancesWithLiabilities = append(balancesWithLiabilities, bank)
	}

	isInIsolatedRiskTier := slices.ContainsFunc(balancesWithLiabilities, func(b *Bank) bool {
		return b.RiskTier == Isolated
	})
	if isInIsolatedRiskTier && len(balancesWithLiabilities) != 1 {
		return IsolatedAccountIllegalState
	}
	return nil
}
