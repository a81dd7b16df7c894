// Package similarity computes set-similarity metrics between a golden
// reference assessment and a freshly produced one. All functions are pure
// and safe for unsynchronized parallel use.
package similarity

import (
	"sort"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// EntitySimilarity returns the Jaccard similarity of two entity-key sets.
// Two empty sets are identical (1.0). A non-empty union never divides by
// zero.
func EntitySimilarity(reference, current map[model.EntityKey]bool) float64 {
	if len(reference) == 0 && len(current) == 0 {
		return 1.0
	}
	intersection := 0
	for k := range reference {
		if current[k] {
			intersection++
		}
	}
	union := len(reference) + len(current) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// CrimeSimilarity averages the per-entity Jaccard similarity of crime-label
// sets over the matched entities. An empty matched set yields 0.0: with no
// common entities there is nothing to credit.
func CrimeSimilarity(reference, current map[model.EntityKey]model.FlaggedEntity, matched []model.EntityKey) float64 {
	if len(matched) == 0 {
		return 0.0
	}
	var sum float64
	for _, k := range matched {
		ref := reference[k].CrimeSet()
		cur := current[k].CrimeSet()

		intersection := 0
		for c := range ref {
			if cur[c] {
				intersection++
			}
		}
		union := len(ref) + len(cur) - intersection
		if union > 0 {
			sum += float64(intersection) / float64(union)
		}
		// Both sets empty: perfect agreement on "no crimes".
		if union == 0 {
			sum += 1.0
		}
	}
	return sum / float64(len(matched))
}

// CrimeRecall averages per-entity recall (|detected ∩ expected| / |expected|)
// over matched entities. Entities whose expected crime set is empty are
// excluded from the average; if every matched entity has an empty expected
// set there is nothing to miss, so recall is 1.0.
func CrimeRecall(reference, current map[model.EntityKey]model.FlaggedEntity, matched []model.EntityKey) float64 {
	if len(matched) == 0 {
		return 0.0
	}
	var sum float64
	counted := 0
	for _, k := range matched {
		ref := reference[k].CrimeSet()
		if len(ref) == 0 {
			continue
		}
		cur := current[k].CrimeSet()
		hit := 0
		for c := range ref {
			if cur[c] {
				hit++
			}
		}
		sum += float64(hit) / float64(len(ref))
		counted++
	}
	if counted == 0 {
		return 1.0
	}
	return sum / float64(counted)
}

// CriticalCrimeMisses returns, for every entity in the reference, the
// critical crimes expected but absent from the current output. Entities
// missing entirely from the current output count all their critical crimes
// as misses.
func CriticalCrimeMisses(reference, current map[model.EntityKey]model.FlaggedEntity, critical map[model.CrimeCategory]bool) []model.CriticalMiss {
	var misses []model.CriticalMiss
	for k, ref := range reference {
		expected := ref.CrimeSet()
		detected := current[k].CrimeSet()
		for c := range expected {
			if critical[c] && !detected[c] {
				misses = append(misses, model.CriticalMiss{Entity: k, Crime: c})
			}
		}
	}
	sort.Slice(misses, func(i, j int) bool {
		if misses[i].Entity != misses[j].Entity {
			return misses[i].Entity < misses[j].Entity
		}
		return misses[i].Crime < misses[j].Crime
	})
	return misses
}

// Compare scores a current assessment against its golden reference and
// returns the full per-article breakdown.
func Compare(reference, current model.Assessment, critical map[model.CrimeCategory]bool) model.ComparisonResult {
	refByKey := reference.ByKey()
	curByKey := current.ByKey()

	refKeys := keySet(refByKey)
	curKeys := keySet(curByKey)

	var matched, missing, extra []model.EntityKey
	for k := range refKeys {
		if curKeys[k] {
			matched = append(matched, k)
		} else {
			missing = append(missing, k)
		}
	}
	for k := range curKeys {
		if !refKeys[k] {
			extra = append(extra, k)
		}
	}
	sortKeys(matched)
	sortKeys(missing)
	sortKeys(extra)

	return model.ComparisonResult{
		Matched:          matched,
		Missing:          missing,
		Extra:            extra,
		EntitySimilarity: EntitySimilarity(refKeys, curKeys),
		CrimeSimilarity:  CrimeSimilarity(refByKey, curByKey, matched),
		CrimeRecall:      CrimeRecall(refByKey, curByKey, matched),
		CrimeDiffs:       crimeDiffs(refByKey, curByKey, matched),
		CriticalMisses:   CriticalCrimeMisses(refByKey, curByKey, critical),
	}
}

// crimeDiffs lists the crime-label discrepancies for matched entities whose
// detected set differs from the expected one.
func crimeDiffs(reference, current map[model.EntityKey]model.FlaggedEntity, matched []model.EntityKey) []model.CrimeDiff {
	var diffs []model.CrimeDiff
	for _, k := range matched {
		ref := reference[k].CrimeSet()
		cur := current[k].CrimeSet()
		if setsEqual(ref, cur) {
			continue
		}
		diffs = append(diffs, model.CrimeDiff{
			Entity:   k,
			Expected: sortedLabels(ref),
			Detected: sortedLabels(cur),
			Missing:  sortedLabels(difference(ref, cur)),
			Extra:    sortedLabels(difference(cur, ref)),
		})
	}
	return diffs
}

func keySet(m map[model.EntityKey]model.FlaggedEntity) map[model.EntityKey]bool {
	set := make(map[model.EntityKey]bool, len(m))
	for k := range m {
		set[k] = true
	}
	return set
}

func sortKeys(keys []model.EntityKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

func setsEqual(a, b map[model.CrimeCategory]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for c := range a {
		if !b[c] {
			return false
		}
	}
	return true
}

func difference(a, b map[model.CrimeCategory]bool) map[model.CrimeCategory]bool {
	out := make(map[model.CrimeCategory]bool)
	for c := range a {
		if !b[c] {
			out[c] = true
		}
	}
	return out
}

func sortedLabels(set map[model.CrimeCategory]bool) []string {
	labels := make([]string, 0, len(set))
	for c := range set {
		labels = append(labels, string(c))
	}
	sort.Strings(labels)
	return labels
}
