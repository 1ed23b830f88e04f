package core

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emodeFixture struct {
	usdc, usdt, sol, jitosol, bonk *Bank
}

func (f emodeFixture) banks() []*Bank {
	return []*Bank{f.usdc, f.usdt, f.sol, f.jitosol, f.bonk}
}

// newEmodeFixture tags two stables together, lets the SOL bank accept the LST
// tag as collateral and leaves one bank untagged.
func newEmodeFixture() emodeFixture {
	f := emodeFixture{
		usdc:    newTestBank("1", "0"),
		usdt:    newTestBank("1", "0"),
		sol:     newTestBank("1", "0"),
		jitosol: newTestBank("1", "0"),
		bonk:    newTestBank("1", "0"),
	}
	f.usdc.Emode = EmodeSettings{
		EmodeTag: 1,
		Flags:    EmodeFlagsOn,
		Entries:  []EmodeEntry{{CollateralBankEmodeTag: 1, AssetWeightInit: d("0.95"), AssetWeightMaint: d("0.97")}},
	}
	f.usdt.Emode = EmodeSettings{
		EmodeTag: 1,
		Flags:    EmodeFlagsOn,
		Entries:  []EmodeEntry{{CollateralBankEmodeTag: 1, AssetWeightInit: d("0.92"), AssetWeightMaint: d("0.96")}},
	}
	f.sol.Emode = EmodeSettings{
		EmodeTag: 2,
		Flags:    EmodeFlagsOn,
		Entries:  []EmodeEntry{{CollateralBankEmodeTag: 3, AssetWeightInit: d("0.9"), AssetWeightMaint: d("0.95")}},
	}
	f.jitosol.Emode = EmodeSettings{EmodeTag: 3}
	return f
}

func liabilityBanksOf(pairs []EmodePair) []solana.PublicKey {
	banks := []solana.PublicKey{}
	for _, p := range pairs {
		banks = append(banks, p.LiabilityBank)
	}
	return banks
}

func TestGetEmodePairs(t *testing.T) {
	f := newEmodeFixture()

	pairs := GetEmodePairs(f.banks())
	require.Len(t, pairs, 3)

	assert.Equal(t, f.usdc.Address, pairs[0].LiabilityBank)
	assert.Equal(t, EmodeTag(1), pairs[0].LiabilityBankTag)
	assert.Equal(t, []solana.PublicKey{f.usdc.Address, f.usdt.Address}, pairs[0].CollateralBanks)

	assert.Equal(t, f.usdt.Address, pairs[1].LiabilityBank)
	assertDecimal(t, d("0.92"), pairs[1].AssetWeightInit)

	assert.Equal(t, f.sol.Address, pairs[2].LiabilityBank)
	assert.Equal(t, EmodeTag(2), pairs[2].LiabilityBankTag)
	assert.Equal(t, EmodeTag(3), pairs[2].CollateralBankTag)
	assert.Equal(t, []solana.PublicKey{f.jitosol.Address}, pairs[2].CollateralBanks)
	assertDecimal(t, d("0.95"), pairs[2].AssetWeightMaint)
}

func TestComputeActiveEmodePairs(t *testing.T) {
	f := newEmodeFixture()
	pairs := GetEmodePairs(f.banks())

	tests := []struct {
		name        string
		liabilities []*Bank
		collateral  []*Bank
		expected    []solana.PublicKey
	}{
		{
			name:       "no debt",
			collateral: []*Bank{f.jitosol},
			expected:   []solana.PublicKey{},
		},
		{
			name:        "lst against sol",
			liabilities: []*Bank{f.sol},
			collateral:  []*Bank{f.jitosol},
			expected:    []solana.PublicKey{f.sol.Address},
		},
		{
			name:        "stable against stable",
			liabilities: []*Bank{f.usdc},
			collateral:  []*Bank{f.usdt},
			expected:    []solana.PublicKey{f.usdc.Address},
		},
		{
			name:        "untagged liability turns e-mode off",
			liabilities: []*Bank{f.sol, f.bonk},
			collateral:  []*Bank{f.jitosol},
			expected:    []solana.PublicKey{},
		},
		{
			name:        "collateral outside the pair",
			liabilities: []*Bank{f.sol},
			collateral:  []*Bank{f.usdc},
			expected:    []solana.PublicKey{},
		},
		{
			name:        "no group covers every liability tag",
			liabilities: []*Bank{f.usdc, f.sol},
			collateral:  []*Bank{f.usdt, f.jitosol},
			expected:    []solana.PublicKey{},
		},
	}

	addresses := func(banks []*Bank) []solana.PublicKey {
		out := []solana.PublicKey{}
		for _, b := range banks {
			out = append(out, b.Address)
		}
		return out
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active := ComputeActiveEmodePairs(pairs, addresses(tt.liabilities), addresses(tt.collateral))
			assert.Equal(t, tt.expected, liabilityBanksOf(active))
		})
	}
}

func TestComputeEmodeImpacts(t *testing.T) {
	f := newEmodeFixture()
	pairs := GetEmodePairs(f.banks())

	liabilities := []solana.PublicKey{f.sol.Address}
	collateral := []solana.PublicKey{f.jitosol.Address}
	impacts := ComputeEmodeImpacts(pairs, liabilities, collateral, []solana.PublicKey{
		f.usdc.Address, f.sol.Address, f.jitosol.Address, f.bonk.Address,
	})
	require.Len(t, impacts, 4)

	usdc := impacts[f.usdc.Address]
	require.NotNil(t, usdc.BorrowImpact)
	assert.Equal(t, EmodeImpactRemove, usdc.BorrowImpact.Status)
	assert.Nil(t, usdc.BorrowImpact.ActivePair)
	require.NotNil(t, usdc.SupplyImpact)
	assert.Equal(t, EmodeImpactExtend, usdc.SupplyImpact.Status)
	assert.Nil(t, usdc.RepayAllImpact)
	assert.Nil(t, usdc.WithdrawAllImpact)

	sol := impacts[f.sol.Address]
	require.NotNil(t, sol.BorrowImpact)
	assert.Equal(t, EmodeImpactExtend, sol.BorrowImpact.Status)
	require.NotNil(t, sol.BorrowImpact.ActivePair)
	assertDecimal(t, d("0.9"), sol.BorrowImpact.ActivePair.AssetWeightInit)
	assert.Equal(t, []solana.PublicKey{f.jitosol.Address}, sol.BorrowImpact.ActivePair.CollateralBanks)
	assert.Equal(t, []EmodeTag{2}, sol.BorrowImpact.ActivePair.LiabilityBankTags)
	assert.Nil(t, sol.SupplyImpact)
	require.NotNil(t, sol.RepayAllImpact)
	assert.Equal(t, EmodeImpactRemove, sol.RepayAllImpact.Status)

	jitosol := impacts[f.jitosol.Address]
	assert.Nil(t, jitosol.BorrowImpact)
	assert.Nil(t, jitosol.SupplyImpact)
	require.NotNil(t, jitosol.WithdrawAllImpact)
	assert.Equal(t, EmodeImpactRemove, jitosol.WithdrawAllImpact.Status)

	bonk := impacts[f.bonk.Address]
	require.NotNil(t, bonk.BorrowImpact)
	assert.Equal(t, EmodeImpactRemove, bonk.BorrowImpact.Status)
	assert.Nil(t, bonk.SupplyImpact)
}

func TestComputeEmodeImpactsWithoutEmode(t *testing.T) {
	f := newEmodeFixture()
	pairs := GetEmodePairs(f.banks())

	impacts := ComputeEmodeImpacts(pairs, nil, []solana.PublicKey{f.usdt.Address}, []solana.PublicKey{
		f.usdc.Address, f.bonk.Address,
	})

	usdc := impacts[f.usdc.Address]
	require.NotNil(t, usdc.BorrowImpact)
	assert.Equal(t, EmodeImpactActivate, usdc.BorrowImpact.Status)
	require.NotNil(t, usdc.BorrowImpact.ActivePair)
	assertDecimal(t, d("0.95"), usdc.BorrowImpact.ActivePair.AssetWeightInit)
	require.NotNil(t, usdc.SupplyImpact)
	assert.Equal(t, EmodeImpactInactive, usdc.SupplyImpact.Status)

	bonk := impacts[f.bonk.Address]
	require.NotNil(t, bonk.BorrowImpact)
	assert.Equal(t, EmodeImpactInactive, bonk.BorrowImpact.Status)
}

func TestBankSnapshotWithEmodeWeights(t *testing.T) {
	f := newEmodeFixture()
	snapshot := NewBankSnapshot(f.banks()...)
	weights := EmodeWeights{AssetWeightInit: d("0.9"), AssetWeightMaint: d("0.95"), CollateralTag: 3}

	emode := snapshot.WithEmodeWeights(weights)
	assert.NotEqual(t, snapshot.Id, emode.Id)
	assert.Equal(t, snapshot.Len(), emode.Len())

	jitosol, err := emode.GetBank(f.jitosol.Address)
	require.NoError(t, err)
	assertDecimal(t, d("0.9"), jitosol.AssetWeightInit)
	assertDecimal(t, d("0.95"), jitosol.AssetWeightMaint)
	assertDecimal(t, d("0.8"), f.jitosol.AssetWeightInit)

	usdc, err := emode.GetBank(f.usdc.Address)
	require.NoError(t, err)
	assert.Same(t, f.usdc, usdc)

	assert.Same(t, snapshot, snapshot.WithEmodeWeights(EmodeWeights{AssetWeightInit: ONE, AssetWeightMaint: ONE}))
}

func TestComputeMaxBorrowWithEmode(t *testing.T) {
	f := newEmodeFixture()
	account := newTestAccount(
		lendingBalance(f.jitosol, "1000000000"),
		borrowingBalance(f.sol, "100000000"),
	)
	engine := newTestEngine(account, f.banks())

	// free collateral 1000*0.8 - 100*1.25 = 675
	maxBorrow, err := engine.ComputeMaxBorrowForBank(f.sol.Address)
	require.NoError(t, err)
	assertDecimal(t, d("540"), maxBorrow)

	// the LST is worth 0.9 under e-mode: 900 - 125 = 775
	weights := EmodeWeights{AssetWeightInit: d("0.9"), AssetWeightMaint: d("0.95"), CollateralTag: 3}
	maxBorrow, err = engine.ComputeMaxBorrowForBankWithEmode(f.sol.Address, weights)
	require.NoError(t, err)
	assertDecimal(t, d("620"), maxBorrow)

	maxBorrow, err = engine.ComputeMaxBorrowForBank(f.sol.Address)
	require.NoError(t, err)
	assertDecimal(t, d("540"), maxBorrow)

	healthy := engine.WithEmodeWeights(weights)
	assets, _, err := healthy.ComputeHealthComponents(Maintenance)
	require.NoError(t, err)
	assertDecimal(t, d("950"), assets)
}

func TestRiskEngineEmodePairs(t *testing.T) {
	f := newEmodeFixture()
	account := newTestAccount(
		lendingBalance(f.jitosol, "1000000000"),
		borrowingBalance(f.sol, "100000000"),
	)
	engine := newTestEngine(account, f.banks())

	active := engine.ComputeActiveEmodePairs()
	assert.Equal(t, []solana.PublicKey{f.sol.Address}, liabilityBanksOf(active))

	impacts := engine.ComputeEmodeImpacts([]solana.PublicKey{f.sol.Address, f.bonk.Address})
	require.Len(t, impacts, 2)
	require.NotNil(t, impacts[f.sol.Address].RepayAllImpact)
	assert.Equal(t, EmodeImpactRemove, impacts[f.sol.Address].RepayAllImpact.Status)
	require.NotNil(t, impacts[f.bonk.Address].BorrowImpact)
	assert.Equal(t, EmodeImpactRemove, impacts[f.bonk.Address].BorrowImpact.Status)
}
