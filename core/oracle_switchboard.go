package core

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// offset of latestConfirmedRound in an AggregatorAccountData, discriminator included
	SWITCHBOARD_V2_LATEST_ROUND_OFFSET = 341
	SWITCHBOARD_V2_ROUND_SIZE          = 65

	SWITCHBOARD_PULL_LAST_UPDATE_OFFSET = 2216
	SWITCHBOARD_PULL_RESULT_OFFSET      = 2264
	SWITCHBOARD_PULL_RESULT_SIZE        = 32
)

var SwitchboardV2AggregatorDiscriminator = []byte{217, 230, 65, 101, 201, 162, 27, 125}

type (
	SwitchboardDecimal struct {
		Mantissa bin.Int128
		Scale    uint32
	}

	switchboardAggregatorRound struct {
		NumSuccess         uint32
		NumError           uint32
		IsClosed           bool
		RoundOpenSlot      uint64
		RoundOpenTimestamp int64
		Result             SwitchboardDecimal
		StdDeviation       SwitchboardDecimal
	}

	switchboardPullResult struct {
		Value  bin.Int128
		StdDev bin.Int128
	}
)

func (sd SwitchboardDecimal) Decimal() (decimal.Decimal, error) {
	if sd.Scale > SWITCHBOARD_MAX_SCALE {
		return decimal.Zero, errors.Wrapf(ErrDecoding, "switchboard scale %d out of range", sd.Scale)
	}
	return decimal.NewFromBigInt(sd.Mantissa.BigInt(), -int32(sd.Scale)), nil
}

func decodeSwitchboardV2LatestRound(data []byte) (*switchboardAggregatorRound, error) {
	if len(data) < SWITCHBOARD_V2_LATEST_ROUND_OFFSET+SWITCHBOARD_V2_ROUND_SIZE {
		return nil, errors.Wrapf(ErrDecoding, "aggregator account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:ACCOUNT_DISCRIMINATOR_SIZE], SwitchboardV2AggregatorDiscriminator) {
		return nil, errors.Wrap(ErrDecoding, "invalid aggregator discriminator")
	}

	var round switchboardAggregatorRound
	dec := bin.NewBorshDecoder(data[SWITCHBOARD_V2_LATEST_ROUND_OFFSET:])
	if err := dec.Decode(&round); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if round.NumSuccess == 0 {
		return nil, errors.Wrap(ErrDecoding, "aggregator has no confirmed result")
	}
	return &round, nil
}

func parseSwitchboardV2(data []byte, cfg OracleConfig) (*OraclePrice, error) {
	round, err := decodeSwitchboardV2LatestRound(data)
	if err != nil {
		return nil, err
	}

	result, err := round.Result.Decimal()
	if err != nil {
		return nil, err
	}
	stdDev, err := round.StdDeviation.Decimal()
	if err != nil {
		return nil, err
	}
	price := NewPriceWithConfidence(result, stdDev.Mul(cfg.SwbConfIntervals), cfg.MaxConfidenceRatio)

	return &OraclePrice{
		PriceRealtime: price,
		PriceWeighted: price,
		Timestamp:     round.RoundOpenTimestamp,
	}, nil
}

func parseSwitchboardPull(data []byte, cfg OracleConfig) (*OraclePrice, error) {
	if len(data) < SWITCHBOARD_PULL_RESULT_OFFSET+SWITCHBOARD_PULL_RESULT_SIZE {
		return nil, errors.Wrapf(ErrDecoding, "pull feed account too short: %d bytes", len(data))
	}

	lastUpdate, err := bin.NewBorshDecoder(data[SWITCHBOARD_PULL_LAST_UPDATE_OFFSET:]).ReadInt64(bin.LE)
	if err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}

	var result switchboardPullResult
	if err := bin.NewBorshDecoder(data[SWITCHBOARD_PULL_RESULT_OFFSET:]).Decode(&result); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}

	exp := -cfg.SwbPullPrecision
	price := NewPriceWithConfidence(
		decimal.NewFromBigInt(result.Value.BigInt(), exp),
		decimal.NewFromBigInt(result.StdDev.BigInt(), exp).Mul(cfg.SwbConfIntervals),
		cfg.MaxConfidenceRatio,
	)

	return &OraclePrice{
		PriceRealtime: price,
		PriceWeighted: price,
		Timestamp:     lastUpdate,
	}, nil
}
