package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aml/riskwatch/internal/model"
)

func keys(names ...string) map[model.EntityKey]bool {
	m := make(map[model.EntityKey]bool, len(names))
	for _, n := range names {
		m[model.NewEntityKey(n, "person")] = true
	}
	return m
}

func TestEntitySimilarity(t *testing.T) {
	tests := []struct {
		name      string
		reference map[model.EntityKey]bool
		current   map[model.EntityKey]bool
		want      float64
	}{
		{
			name:      "identical sets",
			reference: keys("alice", "bob"),
			current:   keys("alice", "bob"),
			want:      1.0,
		},
		{
			name:      "both empty",
			reference: keys(),
			current:   keys(),
			want:      1.0,
		},
		{
			name:      "one empty",
			reference: keys(),
			current:   keys("alice"),
			want:      0.0,
		},
		{
			name:      "partial overlap",
			reference: keys("a", "b", "c"),
			current:   keys("a", "b", "d"),
			want:      0.50,
		},
		{
			name:      "disjoint",
			reference: keys("a"),
			current:   keys("b"),
			want:      0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EntitySimilarity(tt.reference, tt.current), 1e-9)
		})
	}
}

func TestEntitySimilarity_Symmetric(t *testing.T) {
	a := keys("alice", "bob", "carol")
	b := keys("bob", "dave")
	assert.Equal(t, EntitySimilarity(a, b), EntitySimilarity(b, a))
}

func entity(name string, crimes ...string) model.FlaggedEntity {
	return model.FlaggedEntity{EntityName: name, EntityType: "person", Crimes: crimes}
}

func byKey(entities ...model.FlaggedEntity) map[model.EntityKey]model.FlaggedEntity {
	m := make(map[model.EntityKey]model.FlaggedEntity, len(entities))
	for _, e := range entities {
		m[e.Key()] = e
	}
	return m
}

func TestCrimeSimilarity(t *testing.T) {
	ref := byKey(entity("acme", "fraud", "money_laundering"))
	cur := byKey(entity("acme", "fraud", "bribery"))
	matched := []model.EntityKey{model.NewEntityKey("acme", "person")}

	// |{fraud}| / |{fraud, money_laundering, bribery}| = 1/3
	assert.InDelta(t, 1.0/3.0, CrimeSimilarity(ref, cur, matched), 1e-9)
}

func TestCrimeSimilarity_NoMatchedEntities(t *testing.T) {
	ref := byKey(entity("acme", "fraud"))
	cur := byKey(entity("globex", "fraud"))
	assert.Equal(t, 0.0, CrimeSimilarity(ref, cur, nil))
}

func TestCrimeSimilarity_BothCrimeSetsEmpty(t *testing.T) {
	ref := byKey(entity("acme"))
	cur := byKey(entity("acme"))
	matched := []model.EntityKey{model.NewEntityKey("acme", "person")}

	// Agreement on "no crimes" is perfect agreement.
	assert.Equal(t, 1.0, CrimeSimilarity(ref, cur, matched))
}

func TestCrimeRecall(t *testing.T) {
	ref := byKey(
		entity("acme", "fraud", "money_laundering", "bribery"),
		entity("globex", "tax_evasion"),
	)
	cur := byKey(
		entity("acme", "fraud", "money_laundering"),
		entity("globex", "tax_evasion"),
	)
	matched := []model.EntityKey{
		model.NewEntityKey("acme", "person"),
		model.NewEntityKey("globex", "person"),
	}

	// acme 2/3, globex 1/1 -> mean 5/6
	assert.InDelta(t, 5.0/6.0, CrimeRecall(ref, cur, matched), 1e-9)
}

func TestCrimeRecall_EmptyExpectedExcluded(t *testing.T) {
	ref := byKey(
		entity("acme"),
		entity("globex", "fraud", "bribery"),
	)
	cur := byKey(
		entity("acme", "fraud"),
		entity("globex", "fraud"),
	)
	matched := []model.EntityKey{
		model.NewEntityKey("acme", "person"),
		model.NewEntityKey("globex", "person"),
	}

	// acme has no expected crimes and is excluded; globex scores 1/2.
	assert.InDelta(t, 0.5, CrimeRecall(ref, cur, matched), 1e-9)
}

func TestCrimeRecall_AllExpectedEmpty(t *testing.T) {
	ref := byKey(entity("acme"))
	cur := byKey(entity("acme"))
	matched := []model.EntityKey{model.NewEntityKey("acme", "person")}

	assert.Equal(t, 1.0, CrimeRecall(ref, cur, matched))
}

func TestCriticalCrimeMisses(t *testing.T) {
	critical := map[model.CrimeCategory]bool{
		model.CrimeMoneyLaundering:    true,
		model.CrimeSanctionsEvasion:   true,
		model.CrimeTerroristFinancing: true,
	}

	ref := byKey(
		entity("acme", "money_laundering", "fraud"),
		entity("globex", "sanctions_evasion"),
	)
	cur := byKey(
		// fraud is not critical, so dropping money_laundering is the only miss.
		entity("acme", "fraud"),
		// globex is absent entirely: its critical crime still counts.
	)

	misses := CriticalCrimeMisses(ref, cur, critical)
	require.Len(t, misses, 2)
	assert.Equal(t, model.NewEntityKey("acme", "person"), misses[0].Entity)
	assert.Equal(t, model.CrimeMoneyLaundering, misses[0].Crime)
	assert.Equal(t, model.NewEntityKey("globex", "person"), misses[1].Entity)
	assert.Equal(t, model.CrimeSanctionsEvasion, misses[1].Crime)
}

func TestCriticalCrimeMisses_NonCriticalIgnored(t *testing.T) {
	critical := map[model.CrimeCategory]bool{model.CrimeMoneyLaundering: true}

	ref := byKey(entity("acme", "fraud", "bribery"))
	cur := byKey(entity("acme"))

	assert.Empty(t, CriticalCrimeMisses(ref, cur, critical))
}

func TestCompare(t *testing.T) {
	critical := map[model.CrimeCategory]bool{model.CrimeMoneyLaundering: true}

	reference := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		entity("acme", "money_laundering", "fraud"),
		entity("globex", "tax_evasion"),
		entity("initech", "bribery"),
	}}
	current := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		entity("acme", "fraud"),
		entity("globex", "tax_evasion"),
		entity("hooli", "cybercrime"),
	}}

	res := Compare(reference, current, critical)

	assert.Equal(t, []model.EntityKey{
		model.NewEntityKey("acme", "person"),
		model.NewEntityKey("globex", "person"),
	}, res.Matched)
	assert.Equal(t, []model.EntityKey{model.NewEntityKey("initech", "person")}, res.Missing)
	assert.Equal(t, []model.EntityKey{model.NewEntityKey("hooli", "person")}, res.Extra)

	// 2 shared of 4 total entities.
	assert.InDelta(t, 0.5, res.EntitySimilarity, 1e-9)
	// acme 1/2, globex 1/1 -> 0.75
	assert.InDelta(t, 0.75, res.CrimeSimilarity, 1e-9)
	// acme 1/2, globex 1/1 -> 0.75
	assert.InDelta(t, 0.75, res.CrimeRecall, 1e-9)

	require.Len(t, res.CriticalMisses, 1)
	assert.Equal(t, model.CrimeMoneyLaundering, res.CriticalMisses[0].Crime)

	require.Len(t, res.CrimeDiffs, 1)
	diff := res.CrimeDiffs[0]
	assert.Equal(t, model.NewEntityKey("acme", "person"), diff.Entity)
	assert.Equal(t, []string{"money_laundering"}, diff.Missing)
	assert.Empty(t, diff.Extra)
}

func TestCompare_CaseInsensitiveMatching(t *testing.T) {
	reference := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		{EntityName: "ACME Corp", EntityType: "Organization", Crimes: []string{"fraud"}},
	}}
	current := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		{EntityName: "acme corp", EntityType: "organization", Crimes: []string{"fraud"}},
	}}

	res := Compare(reference, current, nil)
	assert.Equal(t, 1.0, res.EntitySimilarity)
	assert.Equal(t, 1.0, res.CrimeSimilarity)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Extra)
}

func TestCompare_MissingTypeDefaultsToUnknown(t *testing.T) {
	reference := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		{EntityName: "Acme", Crimes: []string{"fraud"}},
	}}
	current := model.Assessment{FlaggedEntities: []model.FlaggedEntity{
		{EntityName: "acme", EntityType: "unknown", Crimes: []string{"fraud"}},
	}}

	res := Compare(reference, current, nil)
	assert.Equal(t, 1.0, res.EntitySimilarity)
}
