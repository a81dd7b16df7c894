package model

import (
	"sort"
	"strings"
	"time"
)

// CrimeCategory is one label from the closed financial-crime vocabulary.
type CrimeCategory string

const (
	CrimeMoneyLaundering    CrimeCategory = "money_laundering"
	CrimeSanctionsEvasion   CrimeCategory = "sanctions_evasion"
	CrimeTerroristFinancing CrimeCategory = "terrorist_financing"
	CrimeBribery            CrimeCategory = "bribery"
	CrimeCorruption         CrimeCategory = "corruption"
	CrimeEmbezzlement       CrimeCategory = "embezzlement"
	CrimeFraud              CrimeCategory = "fraud"
	CrimeTaxEvasion         CrimeCategory = "tax_evasion"
	CrimeInsiderTrading     CrimeCategory = "insider_trading"
	CrimeMarketManipulation CrimeCategory = "market_manipulation"
	CrimePonziScheme        CrimeCategory = "ponzi_scheme"
	CrimePyramidScheme      CrimeCategory = "pyramid_scheme"
	CrimeIdentityTheft      CrimeCategory = "identity_theft"
	CrimeCybercrime         CrimeCategory = "cybercrime"
	CrimeHumanTrafficking   CrimeCategory = "human_trafficking"
)

// CrimeCategories is the full vocabulary in canonical order.
var CrimeCategories = []CrimeCategory{
	CrimeMoneyLaundering,
	CrimeSanctionsEvasion,
	CrimeTerroristFinancing,
	CrimeBribery,
	CrimeCorruption,
	CrimeEmbezzlement,
	CrimeFraud,
	CrimeTaxEvasion,
	CrimeInsiderTrading,
	CrimeMarketManipulation,
	CrimePonziScheme,
	CrimePyramidScheme,
	CrimeIdentityTheft,
	CrimeCybercrime,
	CrimeHumanTrafficking,
}

var crimeSet = func() map[CrimeCategory]bool {
	m := make(map[CrimeCategory]bool, len(CrimeCategories))
	for _, c := range CrimeCategories {
		m[c] = true
	}
	return m
}()

// ValidCrime reports whether c belongs to the closed vocabulary.
func ValidCrime(c CrimeCategory) bool {
	return crimeSet[c]
}

// EntityKey is the normalized, case-insensitive identity of an entity:
// lowercased name and type joined by "|".
type EntityKey string

// NewEntityKey builds an EntityKey from a raw name and type. An empty type
// normalizes to "unknown" so entities extracted without a type still match.
func NewEntityKey(name, entityType string) EntityKey {
	n := strings.ToLower(strings.TrimSpace(name))
	t := strings.ToLower(strings.TrimSpace(entityType))
	if t == "" {
		t = "unknown"
	}
	return EntityKey(n + "|" + t)
}

// Name returns the name half of the key.
func (k EntityKey) Name() string {
	if i := strings.IndexByte(string(k), '|'); i >= 0 {
		return string(k)[:i]
	}
	return string(k)
}

// Type returns the type half of the key.
func (k EntityKey) Type() string {
	if i := strings.IndexByte(string(k), '|'); i >= 0 {
		return string(k)[i+1:]
	}
	return "unknown"
}

// EntityRecord is one risk assessment of one entity at one point in time.
// Records are append-only: the pair (EntityID, Timestamp) is unique and a
// record is never mutated once written.
type EntityRecord struct {
	EntityID  EntityKey       `json:"entity_id"`
	Summary   string          `json:"summary"`
	Crimes    []CrimeCategory `json:"crimes"`
	Comments  string          `json:"comments"`
	Flagged   bool            `json:"flagged"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
}

// NormalizeCrimes sorts the crime flags and drops duplicates and labels
// outside the vocabulary. Stored records always hold the normalized form so
// change detection can compare slices directly.
func (r *EntityRecord) NormalizeCrimes() {
	seen := make(map[CrimeCategory]bool, len(r.Crimes))
	out := r.Crimes[:0]
	for _, c := range r.Crimes {
		if !seen[c] && ValidCrime(c) {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	r.Crimes = out
}

// ChangedFrom reports whether r differs materially from prev: crime flags,
// the flagged determination, or comments. Summary-only edits do not count as
// a change. A nil prev always counts as changed.
func (r *EntityRecord) ChangedFrom(prev *EntityRecord) bool {
	if prev == nil {
		return true
	}
	if r.Flagged != prev.Flagged || r.Comments != prev.Comments {
		return true
	}
	if len(r.Crimes) != len(prev.Crimes) {
		return true
	}
	for i := range r.Crimes {
		if r.Crimes[i] != prev.Crimes[i] {
			return true
		}
	}
	return false
}
