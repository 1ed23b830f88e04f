package core

import (
	"slices"

	"github.com/DomeLiquid/lendrisk/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const MAX_EMODE_ENTRIES = 10

// EmodeTag groups banks for e-mode. Tags are not unique: every bank sharing a
// tag gets the same treatment as collateral. Zero means unset.
type EmodeTag uint16

const EmodeTagUnset EmodeTag = 0

type EmodeFlags uint64

const EmodeFlagsOn EmodeFlags = 1 << 0

type EmodeImpactStatus uint8

const (
	EmodeImpactInactive EmodeImpactStatus = iota
	EmodeImpactActivate
	EmodeImpactRemove
	EmodeImpactIncrease
	EmodeImpactReduce
	EmodeImpactExtend
)

func (s EmodeImpactStatus) String() string {
	switch s {
	case EmodeImpactInactive:
		return "Inactive"
	case EmodeImpactActivate:
		return "Activate"
	case EmodeImpactRemove:
		return "Remove"
	case EmodeImpactIncrease:
		return "Increase"
	case EmodeImpactReduce:
		return "Reduce"
	case EmodeImpactExtend:
		return "Extend"
	default:
		return "Unknown"
	}
}

type (
	// EmodeEntry lets a liability bank value collateral from banks tagged
	// CollateralBankEmodeTag at better weights. Weights below the collateral
	// bank's own have no effect.
	EmodeEntry struct {
		CollateralBankEmodeTag EmodeTag        `json:"collateralBankEmodeTag"`
		Flags                  uint8           `json:"flags"`
		AssetWeightInit        decimal.Decimal `json:"assetWeightInit"`
		AssetWeightMaint       decimal.Decimal `json:"assetWeightMaint"`
	}

	EmodeSettings struct {
		EmodeTag  EmodeTag     `json:"emodeTag"`
		Timestamp int64        `json:"timestamp"`
		Flags     EmodeFlags   `json:"flags"`
		Entries   []EmodeEntry `json:"entries"`
	}

	EmodeEntryRaw struct {
		CollateralBankEmodeTag EmodeTag
		Flags                  uint8
		Pad0                   [5]byte
		AssetWeightInit        utils.WrappedI80F48
		AssetWeightMaint       utils.WrappedI80F48
	}

	EmodeSettingsRaw struct {
		EmodeTag  EmodeTag
		Pad0      [6]byte
		Timestamp int64
		Flags     EmodeFlags
		Entries   [MAX_EMODE_ENTRIES]EmodeEntryRaw
	}

	// EmodeWeights are applied to every bank tagged CollateralTag.
	EmodeWeights struct {
		AssetWeightInit  decimal.Decimal `json:"assetWeightInit"`
		AssetWeightMaint decimal.Decimal `json:"assetWeightMaint"`
		CollateralTag    EmodeTag        `json:"collateralTag"`
	}

	// EmodePair is one entry of one liability bank, resolved to the banks
	// currently carrying the collateral tag.
	EmodePair struct {
		CollateralBanks   []solana.PublicKey `json:"collateralBanks"`
		CollateralBankTag EmodeTag           `json:"collateralBankTag"`
		LiabilityBank     solana.PublicKey   `json:"liabilityBank"`
		LiabilityBankTag  EmodeTag           `json:"liabilityBankTag"`
		AssetWeightInit   decimal.Decimal    `json:"assetWeightInit"`
		AssetWeightMaint  decimal.Decimal    `json:"assetWeightMaint"`
	}

	// ActiveEmodePair merges a set of active pairs. Its weights come from the
	// pair with the lowest initial weight.
	ActiveEmodePair struct {
		CollateralBanks    []solana.PublicKey `json:"collateralBanks"`
		CollateralBankTags []EmodeTag         `json:"collateralBankTags"`
		LiabilityBanks     []solana.PublicKey `json:"liabilityBanks"`
		LiabilityBankTags  []EmodeTag         `json:"liabilityBankTags"`
		AssetWeightInit    decimal.Decimal    `json:"assetWeightInit"`
		AssetWeightMaint   decimal.Decimal    `json:"assetWeightMaint"`
	}

	EmodeImpact struct {
		Status         EmodeImpactStatus `json:"status"`
		ResultingPairs []EmodePair       `json:"resultingPairs"`
		ActivePair     *ActiveEmodePair  `json:"activePair,omitempty"`
	}

	// ActionEmodeImpact holds the impact of each action that applies to a
	// bank. Actions that do not apply are nil.
	ActionEmodeImpact struct {
		BorrowImpact      *EmodeImpact `json:"borrowImpact,omitempty"`
		SupplyImpact      *EmodeImpact `json:"supplyImpact,omitempty"`
		RepayAllImpact    *EmodeImpact `json:"repayAllImpact,omitempty"`
		WithdrawAllImpact *EmodeImpact `json:"withdrawAllImpact,omitempty"`
	}
)

func NewEmodeSettingsFromRaw(raw EmodeSettingsRaw) EmodeSettings {
	entries := make([]EmodeEntry, 0, len(raw.Entries))
	for _, e := range raw.Entries {
		if e.CollateralBankEmodeTag == EmodeTagUnset {
			continue
		}
		entries = append(entries, EmodeEntry{
			CollateralBankEmodeTag: e.CollateralBankEmodeTag,
			Flags:                  e.Flags,
			AssetWeightInit:        e.AssetWeightInit.Decimal(),
			AssetWeightMaint:       e.AssetWeightMaint.Decimal(),
		})
	}
	return EmodeSettings{
		EmodeTag:  raw.EmodeTag,
		Timestamp: raw.Timestamp,
		Flags:     raw.Flags,
		Entries:   entries,
	}
}

// WithEmodeWeights returns a copy of the bank whose asset weights are the
// larger of its own and the e-mode ones. The receiver is not modified.
func (b *Bank) WithEmodeWeights(weights EmodeWeights) *Bank {
	bank := *b
	bank.AssetWeightInit = decimal.Max(b.AssetWeightInit, weights.AssetWeightInit)
	bank.AssetWeightMaint = decimal.Max(b.AssetWeightMaint, weights.AssetWeightMaint)
	return &bank
}

// GetEmodePairs lists one pair per e-mode entry of every tagged bank.
func GetEmodePairs(banks []*Bank) []EmodePair {
	pairs := []EmodePair{}
	for _, liabilityBank := range banks {
		if liabilityBank.Emode.EmodeTag == EmodeTagUnset {
			continue
		}
		for _, entry := range liabilityBank.Emode.Entries {
			collateralBanks := []solana.PublicKey{}
			for _, b := range banks {
				if b.Emode.EmodeTag == entry.CollateralBankEmodeTag {
					collateralBanks = append(collateralBanks, b.Address)
				}
			}
			pairs = append(pairs, EmodePair{
				CollateralBanks:   collateralBanks,
				CollateralBankTag: entry.CollateralBankEmodeTag,
				LiabilityBank:     liabilityBank.Address,
				LiabilityBankTag:  liabilityBank.Emode.EmodeTag,
				AssetWeightInit:   entry.AssetWeightInit,
				AssetWeightMaint:  entry.AssetWeightMaint,
			})
		}
	}
	return pairs
}

// ComputeActiveEmodePairs returns the pairs that apply to a position set.
// E-mode is off as soon as one liability bank has no configured pair. Pairs
// are grouped by collateral tag and a group only applies when it supports
// the tag of every active liability.
func ComputeActiveEmodePairs(pairs []EmodePair, activeLiabilities, activeCollateral []solana.PublicKey) []EmodePair {
	configured := slices.DeleteFunc(slices.Clone(pairs), func(p EmodePair) bool {
		return p.CollateralBankTag == EmodeTagUnset || p.LiabilityBankTag == EmodeTagUnset
	})

	liabilityTags := map[solana.PublicKey]EmodeTag{}
	for _, p := range configured {
		liabilityTags[p.LiabilityBank] = p.LiabilityBankTag
	}
	requiredTags := map[EmodeTag]struct{}{}
	for _, liability := range activeLiabilities {
		tag, ok := liabilityTags[liability]
		if !ok {
			return []EmodePair{}
		}
		requiredTags[tag] = struct{}{}
	}

	groups := map[EmodeTag][]EmodePair{}
	tags := []EmodeTag{}
	for _, p := range configured {
		if !slices.Contains(activeLiabilities, p.LiabilityBank) {
			continue
		}
		if !slices.ContainsFunc(p.CollateralBanks, func(c solana.PublicKey) bool {
			return slices.Contains(activeCollateral, c)
		}) {
			continue
		}
		if _, ok := groups[p.CollateralBankTag]; !ok {
			tags = append(tags, p.CollateralBankTag)
		}
		groups[p.CollateralBankTag] = append(groups[p.CollateralBankTag], p)
	}
	slices.Sort(tags)

	active := []EmodePair{}
	for _, tag := range tags {
		group := groups[tag]
		supported := map[EmodeTag]struct{}{}
		for _, p := range group {
			supported[p.LiabilityBankTag] = struct{}{}
		}
		coversAll := true
		for required := range requiredTags {
			if _, ok := supported[required]; !ok {
				coversAll = false
				break
			}
		}
		if coversAll {
			active = append(active, group...)
		}
	}
	return active
}

// ComputeEmodeImpacts simulates, for every bank in allBanks, the actions that
// apply to it and reports how each would change the account's e-mode state:
// borrowing (banks not held as collateral), supplying (untouched banks that
// some pair accepts as collateral), repaying all debt and withdrawing all
// collateral.
func ComputeEmodeImpacts(pairs []EmodePair, activeLiabilities, activeCollateral, allBanks []solana.PublicKey) map[solana.PublicKey]ActionEmodeImpact {
	basePairs := ComputeActiveEmodePairs(pairs, activeLiabilities, activeCollateral)
	baseOn := len(basePairs) > 0

	liabilityTags := map[solana.PublicKey]EmodeTag{}
	emodeCollateral := map[solana.PublicKey]struct{}{}
	for _, p := range pairs {
		liabilityTags[p.LiabilityBank] = p.LiabilityBankTag
		for _, c := range p.CollateralBanks {
			emodeCollateral[c] = struct{}{}
		}
	}
	existingTags := map[EmodeTag]struct{}{}
	for _, l := range activeLiabilities {
		if tag, ok := liabilityTags[l]; ok && tag != EmodeTagUnset {
			existingTags[tag] = struct{}{}
		}
	}

	simulate := func(bank solana.PublicKey, action emodeAction) *EmodeImpact {
		liabilities := slices.Clone(activeLiabilities)
		collateral := slices.Clone(activeCollateral)
		switch action {
		case emodeActionBorrow:
			if !slices.Contains(liabilities, bank) {
				liabilities = append(liabilities, bank)
			}
		case emodeActionRepay:
			liabilities = slices.DeleteFunc(liabilities, bank.Equals)
		case emodeActionSupply:
			if !slices.Contains(collateral, bank) {
				collateral = append(collateral, bank)
			}
		case emodeActionWithdraw:
			collateral = slices.DeleteFunc(collateral, bank.Equals)
		}

		after := ComputeActiveEmodePairs(pairs, liabilities, collateral)
		isOn := len(after) > 0
		status := diffEmodeState(basePairs, after)

		switch action {
		case emodeActionBorrow:
			tag, ok := liabilityTags[bank]
			switch {
			case !ok || tag == EmodeTagUnset:
				status = EmodeImpactInactive
				if baseOn {
					status = EmodeImpactRemove
				}
			case baseOn && !isOn:
				status = EmodeImpactRemove
			case baseOn:
				if _, existing := existingTags[tag]; existing {
					status = EmodeImpactExtend
				}
			}
		case emodeActionSupply:
			switch {
			case !baseOn && isOn:
				status = EmodeImpactActivate
			case baseOn && isOn:
				status = EmodeImpactExtend
			default:
				status = EmodeImpactInactive
			}
		case emodeActionWithdraw:
			if !baseOn {
				status = EmodeImpactInactive
			}
		}

		return &EmodeImpact{
			Status:         status,
			ResultingPairs: after,
			ActivePair:     mergeActiveEmodePairs(after),
		}
	}

	impacts := make(map[solana.PublicKey]ActionEmodeImpact, len(allBanks))
	for _, bank := range allBanks {
		isCollateral := slices.Contains(activeCollateral, bank)
		isLiability := slices.Contains(activeLiabilities, bank)

		var impact ActionEmodeImpact
		if !isCollateral {
			impact.BorrowImpact = simulate(bank, emodeActionBorrow)
		}
		if _, ok := emodeCollateral[bank]; ok && !isCollateral && !isLiability {
			impact.SupplyImpact = simulate(bank, emodeActionSupply)
		}
		if isLiability {
			impact.RepayAllImpact = simulate(bank, emodeActionRepay)
		}
		if isCollateral {
			impact.WithdrawAllImpact = simulate(bank, emodeActionWithdraw)
		}
		impacts[bank] = impact
	}
	return impacts
}

type emodeAction uint8

const (
	emodeActionBorrow emodeAction = iota
	emodeActionRepay
	emodeActionSupply
	emodeActionWithdraw
)

func diffEmodeState(before, after []EmodePair) EmodeImpactStatus {
	was, isOn := len(before) > 0, len(after) > 0
	switch {
	case !was && !isOn:
		return EmodeImpactInactive
	case !was && isOn:
		return EmodeImpactActivate
	case was && !isOn:
		return EmodeImpactRemove
	}

	beforeMin := lowestInitWeightPair(before).AssetWeightInit
	afterMin := lowestInitWeightPair(after).AssetWeightInit
	switch {
	case afterMin.GreaterThan(beforeMin):
		return EmodeImpactIncrease
	case afterMin.LessThan(beforeMin):
		return EmodeImpactReduce
	default:
		return EmodeImpactExtend
	}
}

// lowestInitWeightPair expects a non-empty slice.
func lowestInitWeightPair(pairs []EmodePair) EmodePair {
	lowest := pairs[0]
	for _, p := range pairs[1:] {
		if p.AssetWeightInit.LessThan(lowest.AssetWeightInit) {
			lowest = p
		}
	}
	return lowest
}

func mergeActiveEmodePairs(pairs []EmodePair) *ActiveEmodePair {
	if len(pairs) == 0 {
		return nil
	}
	best := lowestInitWeightPair(pairs)
	merged := &ActiveEmodePair{
		AssetWeightInit:  best.AssetWeightInit,
		AssetWeightMaint: best.AssetWeightMaint,
	}
	for _, p := range pairs {
		for _, c := range p.CollateralBanks {
			if !slices.Contains(merged.CollateralBanks, c) {
				merged.CollateralBanks = append(merged.CollateralBanks, c)
			}
		}
		if !slices.Contains(merged.CollateralBankTags, p.CollateralBankTag) {
			merged.CollateralBankTags = append(merged.CollateralBankTags, p.CollateralBankTag)
		}
		if !slices.Contains(merged.LiabilityBanks, p.LiabilityBank) {
			merged.LiabilityBanks = append(merged.LiabilityBanks, p.LiabilityBank)
		}
		if !slices.Contains(merged.LiabilityBankTags, p.LiabilityBankTag) {
			merged.LiabilityBankTags = append(merged.LiabilityBankTags, p.LiabilityBankTag)
		}
	}
	return merged
}
