package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000
	HOURS_PER_YEAR   = 365.25 * 24

	MIN_EMISSIONS_START_TIME = 1681989983

	SWITCHBOARD_PULL_PRICE_PRECISION = 18

	// decoded exponents and scales outside these bounds are rejected
	PYTH_MAX_EXPONENT     = 30
	SWITCHBOARD_MAX_SCALE = 28
)

var (
	ONE = decimal.NewFromInt(1)

	ZERO_AMOUNT_THRESHOLD   = decimal.Zero
	EMPTY_BALANCE_THRESHOLD = decimal.NewFromInt(1)

	PYTH_PRICE_CONF_INTERVALS     = decimal.RequireFromString("2.12")
	SWB_PRICE_CONF_INTERVALS      = decimal.RequireFromString("1.96")
	MAX_CONFIDENCE_INTERVAL_RATIO = decimal.RequireFromString("0.05")

	DEFAULT_VOLATILITY_FACTOR    = ONE
	DEFAULT_LIQUIDATION_DISCOUNT = decimal.RequireFromString("0.95")
)
