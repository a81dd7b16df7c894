package model

// FlaggedEntity is one entity inside an assessment document, as produced by
// the extraction pipeline and stored in golden reference files.
type FlaggedEntity struct {
	EntityName string   `json:"entity_name" validate:"required"`
	EntityType string   `json:"entity_type"`
	Crimes     []string `json:"crimes_flagged"`
	Summary    string   `json:"summary,omitempty"`
	Comments   string   `json:"comments,omitempty"`
}

// Key returns the normalized identity of the flagged entity.
func (f FlaggedEntity) Key() EntityKey {
	return NewEntityKey(f.EntityName, f.EntityType)
}

// CrimeSet returns the entity's crime labels as a set, restricted to the
// closed vocabulary.
func (f FlaggedEntity) CrimeSet() map[CrimeCategory]bool {
	set := make(map[CrimeCategory]bool, len(f.Crimes))
	for _, c := range f.Crimes {
		cc := CrimeCategory(c)
		if ValidCrime(cc) {
			set[cc] = true
		}
	}
	return set
}

// Assessment is one risk-assessment document for one article, either a
// golden reference or a freshly produced model output.
type Assessment struct {
	Article         string          `json:"article,omitempty"`
	FlaggedEntities []FlaggedEntity `json:"flagged_entities" validate:"dive"`
}

// ByKey indexes the assessment's entities by normalized key. Later
// duplicates of the same key are dropped.
func (a Assessment) ByKey() map[EntityKey]FlaggedEntity {
	m := make(map[EntityKey]FlaggedEntity, len(a.FlaggedEntities))
	for _, e := range a.FlaggedEntities {
		k := e.Key()
		if _, ok := m[k]; !ok {
			m[k] = e
		}
	}
	return m
}
