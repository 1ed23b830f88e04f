package core

import "github.com/pkg/errors"

type RequirementType uint8

const (
	Initial RequirementType = iota
	Maintenance
	Equity
)

func (rt RequirementType) String() string {
	switch rt {
	case Initial:
		return "Initial"
	case Maintenance:
		return "Maintenance"
	case Equity:
		return "Equity"
	default:
		return "Unknown"
	}
}

func (rt RequirementType) Validate() error {
	switch rt {
	case Initial, Maintenance, Equity:
		return nil
	default:
		return errors.Wrapf(ErrInvalidMarginRequirementType, "%d", uint8(rt))
	}
}

// GetOraclePriceType picks the price a regime values positions at. Init gates
// new borrows, so it reads the smoothed price.
func (rt RequirementType) GetOraclePriceType() OraclePriceType {
	if rt == Initial {
		return TimeWeighted
	}
	return RealTime
}
