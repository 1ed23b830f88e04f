package core

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const MAX_LENDING_ACCOUNT_BALANCES = 16

type (
	Account struct {
		Address      solana.PublicKey `json:"address"`
		Group        solana.PublicKey `json:"group"`
		Authority    solana.PublicKey `json:"authority"`
		Balances     []*Balance       `json:"balances"`
		AccountFlags AccountFlags     `json:"accountFlags"`
	}

	AccountRaw struct {
		Group        solana.PublicKey
		Authority    solana.PublicKey
		Balances     [MAX_LENDING_ACCOUNT_BALANCES]BalanceRaw
		AccountFlags AccountFlags
	}
)

type AccountFlags uint64

const (
	DisabledFlag                 AccountFlags = 1 << 0
	InFlashloanFlag              AccountFlags = 1 << 1
	FlashloanEnabledFlag         AccountFlags = 1 << 2
	TransferAuthorityAllowedFlag AccountFlags = 1 << 3
)

func NewAccountFromRaw(address solana.PublicKey, raw *AccountRaw) *Account {
	balances := make([]*Balance, 0, len(raw.Balances))
	for _, b := range raw.Balances {
		balances = append(balances, NewBalanceFromRaw(b))
	}
	return &Account{
		Address:      address,
		Group:        raw.Group,
		Authority:    raw.Authority,
		Balances:     balances,
		AccountFlags: raw.AccountFlags,
	}
}

func (a *Account) GetFlag(flag AccountFlags) bool {
	return a.AccountFlags&flag != 0
}

func (a *Account) ActiveBalances() []*Balance {
	active := make([]*Balance, 0, len(a.Balances))
	for _, b := range a.Balances {
		if b.Active {
			active = append(active, b)
		}
	}
	return active
}

// GetBalance returns the active balance for the bank, or an empty one.
func (a *Account) GetBalance(bankPk solana.PublicKey) *Balance {
	for _, b := range a.Balances {
		if b.Active && b.BankPk.Equals(bankPk) {
			return b
		}
	}
	return NewEmptyBalance(bankPk)
}

// GetAccountHealth is (assets - liabilities) / assets, or 1 without debt.
func GetAccountHealth(totalAssets, totalLiabilities decimal.Decimal) decimal.Decimal {
	health := ONE

	if totalLiabilities.IsZero() {
		return health
	}

	if totalAssets.IsPositive() {
		health = (totalAssets.Sub(totalLiabilities)).Div(totalAssets)
	} else {
		health = decimal.Zero
	}
	return health
}
