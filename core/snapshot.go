package core

import (
	"bytes"
	"slices"
	"strconv"

	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// BankSnapshot is one generation of banks. A computation reads all of its
// banks from the same snapshot so shares and prices never come from
// different loads.
type BankSnapshot struct {
	Id    uuid.UUID                  `json:"id"`
	Banks map[solana.PublicKey]*Bank `json:"banks"`
}

// NewBankSnapshot derives the snapshot id from every bank's address, last
// update and oracle timestamp, so identical inputs share an id.
func NewBankSnapshot(banks ...*Bank) *BankSnapshot {
	s := &BankSnapshot{
		Banks: make(map[solana.PublicKey]*Bank, len(banks)),
	}

	parts := make([]string, 0, len(banks))
	for _, b := range banks {
		s.Banks[b.Address] = b
		parts = append(parts, b.Address.String()+":"+strconv.FormatInt(b.LastUpdate, 10)+":"+strconv.FormatInt(b.OraclePrice.Timestamp, 10))
	}
	s.Id = utils.GenUuidFromStrings(parts...)
	return s
}

func (s *BankSnapshot) GetBank(address solana.PublicKey) (*Bank, error) {
	bank, ok := s.Banks[address]
	if !ok {
		return nil, errors.Wrapf(ErrBankNotFound, "%s", address)
	}
	return bank, nil
}

func (s *BankSnapshot) Len() int {
	return len(s.Banks)
}

// SortedBanks returns the banks ordered by address.
func (s *BankSnapshot) SortedBanks() []*Bank {
	banks := make([]*Bank, 0, len(s.Banks))
	for _, b := range s.Banks {
		banks = append(banks, b)
	}
	slices.SortFunc(banks, func(a, b *Bank) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	return banks
}

func (s *BankSnapshot) EmodePairs() []EmodePair {
	return GetEmodePairs(s.SortedBanks())
}

// WithEmodeWeights returns a snapshot in which every bank tagged
// weights.CollateralTag carries the e-mode weights. The receiver is not
// modified.
func (s *BankSnapshot) WithEmodeWeights(weights EmodeWeights) *BankSnapshot {
	if weights.CollateralTag == EmodeTagUnset {
		return s
	}

	banks := s.SortedBanks()
	for i, b := range banks {
		if b.Emode.EmodeTag == weights.CollateralTag {
			banks[i] = b.WithEmodeWeights(weights)
		}
	}

	snapshot := NewBankSnapshot(banks...)
	snapshot.Id = utils.GenUuidFromStrings(
		s.Id.String(),
		"emode:"+strconv.FormatUint(uint64(weights.CollateralTag), 10)+":"+weights.AssetWeightInit.String()+":"+weights.AssetWeightMaint.String(),
	)
	return snapshot
}
