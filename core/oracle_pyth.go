package core

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	PYTH_LEGACY_MAGIC        = 0xa1b2c3d4
	PYTH_LEGACY_ACCOUNT_SIZE = 240
	PYTH_STATUS_TRADING      = 1

	ACCOUNT_DISCRIMINATOR_SIZE = 8
)

type (
	pythRational struct {
		Value       int64
		Numerator   int64
		Denominator int64
	}

	pythPriceInfo struct {
		Price           int64
		Confidence      uint64
		Status          uint32
		CorporateAction uint32
		PublishSlot     uint64
	}

	// pythLegacyPriceAccount covers the fixed header of a v2 price account up to
	// and including the aggregate price. Component prices follow and are ignored.
	pythLegacyPriceAccount struct {
		Magic              uint32
		Version            uint32
		AccountType        uint32
		Size               uint32
		PriceType          uint32
		Exponent           int32
		NumComponents      uint32
		NumQuoters         uint32
		LastSlot           uint64
		ValidSlot          uint64
		EmaPrice           pythRational
		EmaConfidence      pythRational
		Timestamp          int64
		MinPublishers      uint8
		Reserved           [7]byte
		ProductAccount     solana.PublicKey
		NextPriceAccount   solana.PublicKey
		PreviousSlot       uint64
		PreviousPrice      int64
		PreviousConfidence uint64
		PreviousTimestamp  int64
		Aggregate          pythPriceInfo
	}

	pythPriceFeedMessage struct {
		FeedId          [32]byte
		Price           int64
		Conf            uint64
		Exponent        int32
		PublishTime     int64
		PrevPublishTime int64
		EmaPrice        int64
		EmaConf         uint64
	}

	pythPriceUpdateV2 struct {
		WriteAuthority    solana.PublicKey
		VerificationLevel pythVerificationLevel
		PriceMessage      pythPriceFeedMessage
		PostedSlot        uint64
	}

	pythVerificationLevel struct {
		Full          bool
		NumSignatures uint8
	}
)

func decodePythLegacyPriceAccount(data []byte) (*pythLegacyPriceAccount, error) {
	if len(data) < PYTH_LEGACY_ACCOUNT_SIZE {
		return nil, errors.Wrapf(ErrDecoding, "pyth price account too short: %d bytes", len(data))
	}
	var account pythLegacyPriceAccount
	if err := bin.NewBorshDecoder(data[:PYTH_LEGACY_ACCOUNT_SIZE]).Decode(&account); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if account.Magic != PYTH_LEGACY_MAGIC {
		return nil, errors.Wrapf(ErrDecoding, "invalid pyth magic %#x", account.Magic)
	}
	return &account, nil
}

func checkPythExponent(exp int32) error {
	if exp < -PYTH_MAX_EXPONENT || exp > PYTH_MAX_EXPONENT {
		return errors.Wrapf(ErrDecoding, "pyth exponent %d out of range", exp)
	}
	return nil
}

func parsePythLegacy(data []byte, cfg OracleConfig) (*OraclePrice, error) {
	account, err := decodePythLegacyPriceAccount(data)
	if err != nil {
		return nil, err
	}

	price, confidence := account.Aggregate.Price, account.Aggregate.Confidence
	if account.Aggregate.Status != PYTH_STATUS_TRADING {
		price, confidence = account.PreviousPrice, account.PreviousConfidence
	}

	exp := account.Exponent
	if err := checkPythExponent(exp); err != nil {
		return nil, err
	}
	realtime := NewPriceWithConfidence(
		decimal.New(price, exp),
		decimal.NewFromUint64(confidence).Shift(exp).Mul(cfg.PythConfIntervals),
		cfg.MaxConfidenceRatio,
	)
	weighted := NewPriceWithConfidence(
		decimal.New(account.EmaPrice.Value, exp),
		decimal.New(account.EmaConfidence.Value, exp).Mul(cfg.PythConfIntervals),
		cfg.MaxConfidenceRatio,
	)

	return &OraclePrice{
		PriceRealtime: realtime,
		PriceWeighted: weighted,
		Timestamp:     account.Timestamp,
	}, nil
}

func decodePythPriceUpdateV2(data []byte) (*pythPriceUpdateV2, error) {
	if len(data) < ACCOUNT_DISCRIMINATOR_SIZE {
		return nil, errors.Wrapf(ErrDecoding, "price update too short: %d bytes", len(data))
	}
	dec := bin.NewBorshDecoder(data[ACCOUNT_DISCRIMINATOR_SIZE:])

	var update pythPriceUpdateV2
	if err := dec.Decode(&update.WriteAuthority); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}

	variant, err := dec.ReadUint8()
	if err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	switch variant {
	case 0:
		n, err := dec.ReadUint8()
		if err != nil {
			return nil, errors.Wrap(ErrDecoding, err.Error())
		}
		update.VerificationLevel = pythVerificationLevel{NumSignatures: n}
	case 1:
		update.VerificationLevel = pythVerificationLevel{Full: true}
	default:
		return nil, errors.Wrapf(ErrDecoding, "unknown verification level %d", variant)
	}

	if err := dec.Decode(&update.PriceMessage); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if update.PostedSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	return &update, nil
}

func parsePythPush(data []byte, cfg OracleConfig) (*OraclePrice, error) {
	update, err := decodePythPriceUpdateV2(data)
	if err != nil {
		return nil, err
	}

	msg := update.PriceMessage
	exp := msg.Exponent
	if err := checkPythExponent(exp); err != nil {
		return nil, err
	}
	realtime := NewPriceWithConfidence(
		decimal.New(msg.Price, exp),
		decimal.NewFromUint64(msg.Conf).Shift(exp).Mul(cfg.PythConfIntervals),
		cfg.MaxConfidenceRatio,
	)
	weighted := NewPriceWithConfidence(
		decimal.New(msg.EmaPrice, exp),
		decimal.NewFromUint64(msg.EmaConf).Shift(exp).Mul(cfg.PythConfIntervals),
		cfg.MaxConfidenceRatio,
	)

	return &OraclePrice{
		PriceRealtime: realtime,
		PriceWeighted: weighted,
		Timestamp:     msg.PublishTime,
	}, nil
}
