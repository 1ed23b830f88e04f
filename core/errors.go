package core

import (
	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/pkg/errors"
)

var (
	ErrDecoding                = errors.New("decoding error")
	ErrUnsupportedOracleFormat = errors.Wrap(ErrDecoding, "unsupported oracle format")

	ErrArithmeticOverflow = utils.ErrArithmeticOverflow
	ErrDivisionByZero     = utils.ErrDivisionByZero

	ErrBankNotFound                 = errors.New("bank not found")
	ErrInvalidMarginRequirementType = errors.New("invalid margin requirement type")

	ErrStaleOracle         = errors.New("oracle price is stale")
	ErrInvalidOracleConfig = errors.New("invalid oracle config")
	ErrInvalidLeverage     = errors.New("invalid target leverage")

	ErrOptimalUr             = errors.New("optimal utilization rate must be in (0, 1]")
	ErrPlateauIr             = errors.New("plateau interest rate must not be negative")
	ErrMaxIr                 = errors.New("max interest rate must not be negative")
	ErrPlateauGreaterThanMax = errors.New("plateau interest rate greater than max interest rate")

	RiskEngineRejected          = errors.New("risk engine rejected account health")
	InvalidConfig               = errors.New("invalid bank config")
	IllegalBalanceState         = errors.New("illegal balance state")
	IsolatedAccountIllegalState = errors.New("isolated account holds more than one liability")
)
