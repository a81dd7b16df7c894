package model

// Metric names shared between comparison results, threshold configuration,
// and verdict records.
const (
	MetricEntitySimilarity  = "entity_similarity"
	MetricCrimeSimilarity   = "crime_similarity"
	MetricCrimeRecall       = "crime_recall"
	MetricCriticalMisses    = "critical_crime_misses"
	MetricArticlesPerPerson = "articles_per_person"
)

// CrimeDiff details the crime-label discrepancy for one matched entity whose
// detected crimes differ from the reference.
type CrimeDiff struct {
	Entity   EntityKey `json:"entity"`
	Expected []string  `json:"expected_crimes"`
	Detected []string  `json:"detected_crimes"`
	Missing  []string  `json:"missing_crimes"`
	Extra    []string  `json:"extra_crimes"`
}

// CriticalMiss records one critical crime present in the reference for an
// entity but absent from the current output.
type CriticalMiss struct {
	Entity EntityKey     `json:"entity"`
	Crime  CrimeCategory `json:"crime"`
}

// ComparisonResult is the output of one similarity-engine invocation for one
// test article.
type ComparisonResult struct {
	Matched []EntityKey `json:"matched"`
	Missing []EntityKey `json:"missing"`
	Extra   []EntityKey `json:"extra"`

	EntitySimilarity float64 `json:"entity_similarity"`
	CrimeSimilarity  float64 `json:"crime_similarity"`
	CrimeRecall      float64 `json:"crime_recall"`

	CrimeDiffs     []CrimeDiff    `json:"crime_details,omitempty"`
	CriticalMisses []CriticalMiss `json:"critical_crime_misses,omitempty"`
}

// Metrics returns the result's scalar metrics keyed by metric name.
func (c *ComparisonResult) Metrics() map[string]float64 {
	return map[string]float64{
		MetricEntitySimilarity: c.EntitySimilarity,
		MetricCrimeSimilarity:  c.CrimeSimilarity,
		MetricCrimeRecall:      c.CrimeRecall,
	}
}
