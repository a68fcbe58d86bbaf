package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository/memory"
	"github.com/medbook/booking-api/pkg/timegrid"
)

func datePtr(s string) *timegrid.Date {
	d := timegrid.MustParseDate(s)
	return &d
}

func weekdays(from, to string, ranges ...model.TimeRange) *model.AvailabilityRule {
	return &model.AvailabilityRule{
		Kind:       model.RuleKindRecurring,
		DateFrom:   datePtr(from),
		DateTo:     datePtr(to),
		DaysOfWeek: model.Weekdays{timegrid.Monday, timegrid.Tuesday, timegrid.Wednesday, timegrid.Thursday, timegrid.Friday},
		TimeRanges: ranges,
	}
}

func TestRuleApplies(t *testing.T) {
	rule := weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "09:00", End: "12:00"})

	assert.True(t, RuleApplies(rule, timegrid.MustParseDate("2024-01-03")))
	assert.True(t, RuleApplies(rule, timegrid.MustParseDate("2024-01-31")), "inclusive end")
	assert.False(t, RuleApplies(rule, timegrid.MustParseDate("2024-01-06")), "saturday")
	assert.False(t, RuleApplies(rule, timegrid.MustParseDate("2024-02-01")), "after range")

	open := &model.AvailabilityRule{Kind: model.RuleKindRecurring, DaysOfWeek: model.Weekdays{timegrid.Wednesday}}
	assert.False(t, RuleApplies(open, timegrid.MustParseDate("2024-01-03")), "recurring without bounds")

	once := &model.AvailabilityRule{Kind: model.RuleKindOneTime, Date: datePtr("2024-01-06")}
	assert.True(t, RuleApplies(once, timegrid.MustParseDate("2024-01-06")))
	assert.False(t, RuleApplies(once, timegrid.MustParseDate("2024-01-07")))
}

func TestOpenRangesMergesRules(t *testing.T) {
	r := NewResolver([]*model.AvailabilityRule{
		weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "09:00", End: "12:00"}),
		{
			Kind:       model.RuleKindOneTime,
			Date:       datePtr("2024-01-03"),
			TimeRanges: model.TimeRanges{{Start: "12:00", End: "13:00"}, {Start: "15:00", End: "16:00"}},
		},
	}, nil)

	assert.Equal(t, []timegrid.Range{{Start: 540, End: 780}, {Start: 900, End: 960}}, r.OpenRanges(timegrid.MustParseDate("2024-01-03")))
	assert.Equal(t, []timegrid.Range{{Start: 540, End: 720}}, r.OpenRanges(timegrid.MustParseDate("2024-01-04")))
	assert.Empty(t, r.OpenRanges(timegrid.MustParseDate("2024-01-06")))
}

func TestFitsUsesSingleRange(t *testing.T) {
	r := NewResolver([]*model.AvailabilityRule{
		weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "09:00", End: "10:00"}),
		weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "10:00", End: "11:00"}),
	}, nil)
	day := timegrid.MustParseDate("2024-01-03")

	assert.Equal(t, []timegrid.Range{{Start: 540, End: 660}}, r.OpenRanges(day))
	assert.True(t, r.Fits(day, 540, 600))
	assert.True(t, r.Fits(day, 600, 660))
	assert.False(t, r.Fits(day, 570, 630), "spans two rules")
	assert.False(t, r.Fits(day, 780, 810))
}

func TestIsAbsentInclusive(t *testing.T) {
	r := NewResolver(
		[]*model.AvailabilityRule{weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "09:00", End: "12:00"})},
		[]*model.Absence{{DateFrom: timegrid.MustParseDate("2024-01-03"), DateTo: timegrid.MustParseDate("2024-01-04")}},
	)

	assert.False(t, r.IsAbsent(timegrid.MustParseDate("2024-01-02")))
	assert.True(t, r.IsAbsent(timegrid.MustParseDate("2024-01-03")))
	assert.True(t, r.IsAbsent(timegrid.MustParseDate("2024-01-04")))
	assert.False(t, r.IsAbsent(timegrid.MustParseDate("2024-01-05")))
	assert.NotEmpty(t, r.OpenRanges(timegrid.MustParseDate("2024-01-03")), "absence keeps ranges")
}

func TestNewResolverSkipsMalformedRanges(t *testing.T) {
	r := NewResolver([]*model.AvailabilityRule{
		weekdays("2024-01-01", "2024-01-31",
			model.TimeRange{Start: "9:00", End: "12:00"},
			model.TimeRange{Start: "14:00", End: "13:00"},
			model.TimeRange{Start: "15:00", End: "16:00"},
		),
	}, nil)
	assert.Equal(t, []timegrid.Range{{Start: 900, End: 960}}, r.OpenRanges(timegrid.MustParseDate("2024-01-03")))
}

func TestServiceResolverFor(t *testing.T) {
	store := memory.NewStore()
	repo := store.Availability()
	doctorID := uuid.New()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	rule := weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "09:00", End: "12:00"})
	rule.Base = model.NewBase(now)
	rule.DoctorID = doctorID
	require.NoError(t, repo.CreateRule(context.Background(), rule))

	other := weekdays("2024-01-01", "2024-01-31", model.TimeRange{Start: "13:00", End: "14:00"})
	other.Base = model.NewBase(now)
	other.DoctorID = uuid.New()
	require.NoError(t, repo.CreateRule(context.Background(), other))

	res, err := NewService(repo).ResolverFor(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, []timegrid.Range{{Start: 540, End: 720}}, res.OpenRanges(timegrid.MustParseDate("2024-01-03")))
}
