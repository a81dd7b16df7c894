package window

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/threshold"
)

// ProductivitySample is one entry of the externally maintained productivity
// feed: average articles processed per person for one month.
type ProductivitySample struct {
	Period string  `json:"month" validate:"required"`
	Value  float64 `json:"avg_articles_per_person" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadProductivity reads and validates the productivity feed. The feed is an
// external collaborator input: required fields and non-decreasing period
// ordering are checked before any sample is used.
func LoadProductivity(path string) ([]ProductivitySample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "window: read productivity feed %s", path)
	}

	var samples []ProductivitySample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, eris.Wrapf(model.ErrMalformedInput, "window: parse productivity feed: %v", err)
	}

	prev := ""
	for i, s := range samples {
		if err := validate.Struct(s); err != nil {
			return nil, eris.Wrapf(model.ErrMalformedInput, "window: productivity sample %d: %v", i, err)
		}
		// Periods are "YYYY-MM", so string order is chronological order.
		if s.Period < prev {
			return nil, eris.Wrapf(model.ErrMalformedInput, "window: productivity feed out of order at %s (after %s)", s.Period, prev)
		}
		prev = s.Period
	}
	return samples, nil
}

// EvaluateProductivity composes a verdict from the last kind.Size() samples
// of the feed, applying the same strict AND policy as test-metric windows.
func (a *Aggregator) EvaluateProductivity(kind model.WindowKind, period string, samples []ProductivitySample, cfg threshold.Config) (*model.WindowVerdict, error) {
	n := kind.Size()
	if len(samples) < n {
		return nil, eris.Wrapf(model.ErrInsufficientData, "window: need %d productivity samples, found %d", n, len(samples))
	}

	points := make([]model.PeriodPoint, 0, n)
	for _, s := range samples[len(samples)-n:] {
		points = append(points, model.PeriodPoint{
			Period:  s.Period,
			Metrics: map[string]float64{model.MetricArticlesPerPerson: s.Value},
		})
	}
	return evaluatePoints(kind, period, points, cfg), nil
}
