// Package availability answers, for a single doctor, which minutes of a given
// day are open and whether the day is blocked by an absence.
package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/timegrid"
)

// Resolver is built once per request from the doctor's complete rule and
// absence sets and is safe for concurrent reads.
type Resolver struct {
	rules    []compiledRule
	absences []*model.Absence
}

type compiledRule struct {
	rule   *model.AvailabilityRule
	ranges []timegrid.Range
}

func NewResolver(rules []*model.AvailabilityRule, absences []*model.Absence) *Resolver {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		c := compiledRule{rule: r}
		for _, tr := range r.TimeRanges {
			rng, err := tr.Minutes()
			if err != nil || rng.End <= rng.Start {
				continue
			}
			c.ranges = append(c.ranges, rng)
		}
		compiled = append(compiled, c)
	}
	return &Resolver{rules: compiled, absences: absences}
}

// RuleApplies reports whether rule opens any time on date.
func RuleApplies(rule *model.AvailabilityRule, date timegrid.Date) bool {
	switch rule.Kind {
	case model.RuleKindOneTime:
		return rule.Date != nil && *rule.Date == date
	case model.RuleKindRecurring:
		if rule.DateFrom == nil || rule.DateTo == nil {
			return false
		}
		return date.Within(*rule.DateFrom, *rule.DateTo) && rule.DaysOfWeek.Contains(date.Weekday())
	default:
		return false
	}
}

// OpenRanges is the merged union of all ranges of rules applying on date.
// Absences do not affect it.
func (r *Resolver) OpenRanges(date timegrid.Date) []timegrid.Range {
	var all []timegrid.Range
	for _, c := range r.rules {
		if RuleApplies(c.rule, date) {
			all = append(all, c.ranges...)
		}
	}
	return timegrid.MergeRanges(all)
}

func (r *Resolver) IsAbsent(date timegrid.Date) bool {
	for _, a := range r.absences {
		if date.Within(a.DateFrom, a.DateTo) {
			return true
		}
	}
	return false
}

// Fits reports whether [startMin, endMin] lies inside one range of one rule
// applying on date. Adjacent ranges, even of the same rule, are not joined.
func (r *Resolver) Fits(date timegrid.Date, startMin, endMin int) bool {
	for _, c := range r.rules {
		if !RuleApplies(c.rule, date) {
			continue
		}
		for _, rng := range c.ranges {
			if rng.Contains(startMin, endMin) {
				return true
			}
		}
	}
	return false
}

// Service loads resolvers from storage.
type Service struct {
	repo repository.AvailabilityRepository
}

func NewService(repo repository.AvailabilityRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ResolverFor(ctx context.Context, doctorID uuid.UUID) (*Resolver, error) {
	rules, err := s.repo.ListRules(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability rules: %w", err)
	}
	absences, err := s.repo.ListAbsences(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load absences: %w", err)
	}
	return NewResolver(rules, absences), nil
}
