package core

import (
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type OracleSetup uint8

const (
	OracleSetupNone OracleSetup = iota
	PythLegacy
	SwitchboardV2
	PythPushOracle
	SwitchboardPull
	StakedWithPythPush
)

func (os OracleSetup) String() string {
	switch os {
	case OracleSetupNone:
		return "None"
	case PythLegacy:
		return "PythLegacy"
	case SwitchboardV2:
		return "SwitchboardV2"
	case PythPushOracle:
		return "PythPushOracle"
	case SwitchboardPull:
		return "SwitchboardPull"
	case StakedWithPythPush:
		return "StakedWithPythPush"
	default:
		return "Unknown"
	}
}

type OraclePriceType uint8

const (
	TimeWeighted OraclePriceType = iota
	RealTime
)

type PriceBias uint8

const (
	PriceBiasLowest PriceBias = iota
	PriceBiasNone
	PriceBiasHighest
)

func (pb PriceBias) String() string {
	switch pb {
	case PriceBiasLowest:
		return "Lowest"
	case PriceBiasNone:
		return "None"
	case PriceBiasHighest:
		return "Highest"
	default:
		return "Unknown"
	}
}

type (
	PriceWithConfidence struct {
		Price        decimal.Decimal `json:"price"`
		Confidence   decimal.Decimal `json:"confidence"`
		LowestPrice  decimal.Decimal `json:"lowestPrice"`
		HighestPrice decimal.Decimal `json:"highestPrice"`
	}

	OraclePrice struct {
		PriceRealtime PriceWithConfidence `json:"priceRealtime"`
		PriceWeighted PriceWithConfidence `json:"priceWeighted"`
		Timestamp     int64               `json:"timestamp"`
		OracleSetup   OracleSetup         `json:"oracleSetup"`
		PythShardId   *uint16             `json:"pythShardId,omitempty"`
	}

	// OracleConfig holds the confidence parameters applied while decoding one
	// oracle account.
	OracleConfig struct {
		PythConfIntervals  decimal.Decimal `json:"pythConfIntervals"`
		SwbConfIntervals   decimal.Decimal `json:"swbConfIntervals"`
		MaxConfidenceRatio decimal.Decimal `json:"maxConfidenceRatio"`
		SwbPullPrecision   int32           `json:"swbPullPrecision"`
	}
)

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		PythConfIntervals:  PYTH_PRICE_CONF_INTERVALS,
		SwbConfIntervals:   SWB_PRICE_CONF_INTERVALS,
		MaxConfidenceRatio: MAX_CONFIDENCE_INTERVAL_RATIO,
		SwbPullPrecision:   SWITCHBOARD_PULL_PRICE_PRECISION,
	}
}

// Validate rejects parameters that would break lowest <= price <= highest or
// push a pull feed past the supported scale.
func (c OracleConfig) Validate() error {
	if c.PythConfIntervals.IsNegative() {
		return errors.Wrap(ErrInvalidOracleConfig, "pyth confidence intervals must not be negative")
	}
	if c.SwbConfIntervals.IsNegative() {
		return errors.Wrap(ErrInvalidOracleConfig, "switchboard confidence intervals must not be negative")
	}
	if c.MaxConfidenceRatio.IsNegative() || c.MaxConfidenceRatio.GreaterThan(ONE) {
		return errors.Wrap(ErrInvalidOracleConfig, "max confidence ratio must be in [0, 1]")
	}
	if c.SwbPullPrecision < 0 || c.SwbPullPrecision > SWITCHBOARD_MAX_SCALE {
		return errors.Wrapf(ErrInvalidOracleConfig, "switchboard pull precision must be in [0, %d]", SWITCHBOARD_MAX_SCALE)
	}
	return nil
}

// NewPriceWithConfidence applies the confidence cap: the band half-width is
// min(confidence, price * maxConfidenceRatio).
func NewPriceWithConfidence(price, confidence, maxConfidenceRatio decimal.Decimal) PriceWithConfidence {
	capped := CapConfidenceInterval(price, confidence.Abs(), maxConfidenceRatio)
	return PriceWithConfidence{
		Price:        price,
		Confidence:   capped,
		LowestPrice:  price.Sub(capped),
		HighestPrice: price.Add(capped),
	}
}

func CapConfidenceInterval(price, confidence, maxConfidenceRatio decimal.Decimal) decimal.Decimal {
	return decimal.Min(confidence, price.Mul(maxConfidenceRatio))
}

func (p *OraclePrice) GetPriceWithConfidence(weighted bool) PriceWithConfidence {
	if weighted {
		return p.PriceWeighted
	}
	return p.PriceRealtime
}

func (p *OraclePrice) GetPrice(priceBias PriceBias, weighted bool) decimal.Decimal {
	price := p.GetPriceWithConfidence(weighted)
	switch priceBias {
	case PriceBiasLowest:
		return price.LowestPrice
	case PriceBiasHighest:
		return price.HighestPrice
	default:
		return price.Price
	}
}

func (p *OraclePrice) IsStale(clk clock.Clock, maxAge int64) bool {
	if maxAge <= 0 {
		return false
	}
	return clk.Now().Unix()-p.Timestamp > maxAge
}

// ParseOraclePriceData decodes a raw oracle account according to the bank's
// oracle setup.
func ParseOraclePriceData(oracleSetup OracleSetup, rawData []byte, shardId *uint16, cfg OracleConfig) (*OraclePrice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		price *OraclePrice
		err   error
	)

	switch oracleSetup {
	case PythLegacy:
		price, err = parsePythLegacy(rawData, cfg)
	case PythPushOracle, StakedWithPythPush:
		price, err = parsePythPush(rawData, cfg)
	case SwitchboardV2:
		price, err = parseSwitchboardV2(rawData, cfg)
	case SwitchboardPull:
		price, err = parseSwitchboardPull(rawData, cfg)
	default:
		return nil, errors.Wrapf(ErrUnsupportedOracleFormat, "oracle setup %d", oracleSetup)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", oracleSetup)
	}

	if price.PriceRealtime.Price.IsNegative() || price.PriceWeighted.Price.IsNegative() {
		return nil, errors.Wrapf(ErrDecoding, "%s reported a negative price", oracleSetup)
	}

	price.OracleSetup = oracleSetup
	if oracleSetup != SwitchboardV2 && oracleSetup != SwitchboardPull {
		price.PythShardId = shardId
	}
	return price, nil
}
