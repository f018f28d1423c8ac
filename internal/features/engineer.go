package features

import (
	"errors"
	"math"
	"time"

	"github.com/enrollhq/leadscore/internal/leads"
)

// Field specs for the raw inputs. Scores are 0-100 in the CRM; touchpoints
// and recency get generous ceilings before values are treated as garbage.
var (
	specScore      = FieldSpec{Name: "score", Min: 0, Max: 100, Fallback: 50}
	specTouchpoint = FieldSpec{Name: "touchpoint_count", Min: 0, Max: 10000, Fallback: 0}
	specDays       = FieldSpec{Name: "days_since_created", Min: 0, Max: 3650, Fallback: 0}
)

// Engineer derives the full feature vector for one lead. Stats and Encodings
// come from the active model bundle so serving-time features line up with
// what the model saw in training.
type Engineer struct {
	Stats      *ReferenceStats
	Encodings  *Encodings
	Polynomial bool
}

// Build derives features in a fixed order: temporal, score-derived,
// categorical codes, interactions, then optional polynomial terms. Every
// derived value passes through Sanitize before entering the vector, and a
// missing or malformed source field lowers coverage instead of failing.
func (e *Engineer) Build(lead *leads.LeadRecord, now time.Time) (*Vector, error) {
	if lead == nil {
		return nil, errors.New("lead record is nil")
	}

	v := NewVector(32)

	// Temporal. A missing created_at falls back on all three features so
	// the coverage ratio reflects the loss.
	// Whole days, so repeated scoring of the same snapshot within a day
	// stays bit-identical.
	createdMissing := lead.CreatedAt.IsZero()
	days := specDays.Fallback
	if !createdMissing {
		days = math.Floor(now.Sub(lead.CreatedAt).Hours() / 24)
	}
	days = set(v, "days_since_created", days, specDays)
	month := 0.0
	if !createdMissing {
		month = float64(lead.CreatedAt.Month())
	}
	set(v, "created_month", month, FieldSpec{Min: 0, Max: 12, Fallback: 0})
	season := 0.0
	if isApplicationSeason(lead.CreatedAt) {
		season = 1
	}
	v.Set("is_application_season", season, createdMissing)
	if createdMissing {
		v.Set("days_since_created", days, true)
		v.Set("created_month", month, true)
	}

	// Score-derived.
	leadScore := set(v, "lead_score", lead.LeadScore, specScore)
	set(v, "lead_score_squared", leadScore*leadScore, FieldSpec{Min: 0, Max: 10000, Fallback: 2500})
	set(v, "lead_score_log1p", math.Log1p(leadScore), FieldSpec{Min: 0, Max: 10, Fallback: 0})
	v.Set("lead_score_percentile", e.stats().LeadScorePercentile(leadScore), false)

	engScore := set(v, "engagement_score", lead.EngagementScore, specScore)
	set(v, "engagement_score_squared", engScore*engScore, FieldSpec{Min: 0, Max: 10000, Fallback: 2500})
	set(v, "engagement_score_log1p", math.Log1p(engScore), FieldSpec{Min: 0, Max: 10, Fallback: 0})
	v.Set("engagement_score_percentile", e.stats().EngagementPercentile(engScore), false)

	touchpoints := set(v, "touchpoint_count", lead.TouchpointCount, specTouchpoint)
	set(v, "touchpoint_count_log1p", math.Log1p(touchpoints), FieldSpec{Min: 0, Max: 12, Fallback: 0})

	// Categorical codes from the bundle's trained tables.
	e.setCode(v, "lifecycle_state_code", "lifecycle_state", lead.LifecycleState)
	e.setCode(v, "status_code", "status", lead.Status)
	e.setCode(v, "engagement_level_code", "engagement_level", lead.EngagementLevel)
	e.setCode(v, "application_source_code", "application_source", lead.ApplicationSource)
	e.setCode(v, "programme_code", "programme_name", lead.ProgrammeName)
	e.setCode(v, "campus_code", "campus_name", lead.CampusName)

	// Interactions.
	set(v, "lead_engagement_interaction", leadScore*engScore, FieldSpec{Min: 0, Max: 10000, Fallback: 0})
	set(v, "engagement_touchpoint_interaction", engScore*touchpoints, FieldSpec{Min: 0, Max: 1e6, Fallback: 0})
	set(v, "score_recency_interaction", leadScore/(1+days), FieldSpec{Min: 0, Max: 100, Fallback: 0})
	set(v, "touchpoint_rate", touchpoints/(1+days), FieldSpec{Min: 0, Max: 10000, Fallback: 0})

	if e.Polynomial {
		set(v, "lead_score_cubed", leadScore*leadScore*leadScore, FieldSpec{Min: 0, Max: 1e6, Fallback: 0})
		set(v, "engagement_score_cubed", engScore*engScore*engScore, FieldSpec{Min: 0, Max: 1e6, Fallback: 0})
	}

	return v, nil
}

func (e *Engineer) stats() *ReferenceStats {
	if e.Stats == nil {
		return &ReferenceStats{}
	}
	return e.Stats
}

func (e *Engineer) setCode(v *Vector, feature, field, value string) {
	code, unknown := e.Encodings.Code(field, value)
	v.Set(feature, code, unknown)
}

// set sanitizes a value into the vector and returns the safe value so
// downstream derivations compound on sanitized inputs, not raw ones.
func set(v *Vector, name string, value float64, spec FieldSpec) float64 {
	safe, modified, _ := Sanitize(value, spec)
	v.Set(name, safe, modified)
	return safe
}

// isApplicationSeason reports whether t falls in the September-January
// admissions window.
func isApplicationSeason(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	switch t.Month() {
	case time.September, time.October, time.November, time.December, time.January:
		return true
	default:
		return false
	}
}
