package timegrid

import (
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToMinutesRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		s := MinutesToTime(m)
		require.Len(t, s, 5)
		got, err := TimeToMinutes(s)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestTimeToMinutesRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "9:00", "24:00", "12:60", "ab:cd", "12-30", "12:3x"} {
		_, err := TimeToMinutes(in)
		assert.Error(t, err, in)
	}
}

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"empty", nil, []Range{}},
		{"drops inverted and empty", []Range{{600, 600}, {700, 650}}, []Range{}},
		{"touching merge", []Range{{540, 600}, {600, 660}}, []Range{{540, 660}}},
		{"overlap merge", []Range{{540, 700}, {600, 660}}, []Range{{540, 700}}},
		{"unsorted disjoint", []Range{{780, 840}, {540, 600}}, []Range{{540, 600}, {780, 840}}},
		{"chain", []Range{{600, 700}, {540, 610}, {690, 720}, {800, 900}}, []Range{{540, 720}, {800, 900}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeRanges(tt.in))
		})
	}
}

func TestMergeRangesProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		in := make([]Range, rng.Intn(8))
		for j := range in {
			in[j] = Range{Start: rng.Intn(MinutesPerDay), End: rng.Intn(MinutesPerDay)}
		}
		out := MergeRanges(in)

		for j := 1; j < len(out); j++ {
			assert.Less(t, out[j-1].End, out[j].Start, "sorted, disjoint and non-touching")
		}
		assert.Equal(t, out, MergeRanges(out), "idempotent")

		// every minute covered by the input is covered by the output and vice versa
		for m := 0; m < MinutesPerDay; m += 13 {
			assert.Equal(t, covered(in, m), covered(out, m), "minute %d", m)
		}
	}
}

func covered(ranges []Range, m int) bool {
	for _, r := range ranges {
		if r.End > r.Start && m >= r.Start && m < r.End {
			return true
		}
	}
	return false
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(540, 600, 570, 630))
	assert.False(t, Overlaps(540, 600, 600, 630), "back-to-back")
	assert.True(t, Overlaps(540, 720, 600, 630), "containment")

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		a, b, c, d := rng.Intn(100), rng.Intn(100), rng.Intn(100), rng.Intn(100)
		assert.Equal(t, Overlaps(a, b, c, d), Overlaps(c, d, a, b))
	}

	base := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	assert.False(t, OverlapsTime(base, base.Add(30*time.Minute), base.Add(30*time.Minute), base.Add(time.Hour)))
	assert.True(t, OverlapsTime(base, base.Add(time.Hour), base.Add(30*time.Minute), base.Add(90*time.Minute)))
}

func TestWeekdayOf(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Sunday, WeekdayOf(sunday))
	assert.Equal(t, Monday, WeekdayOf(sunday.AddDate(0, 0, 1)))
	assert.Equal(t, Saturday, WeekdayOf(sunday.AddDate(0, 0, -1)))

	_, err := ParseWeekday(0)
	assert.Error(t, err)
	w, err := ParseWeekday(7)
	require.NoError(t, err)
	assert.Equal(t, "Sunday", w.String())
}

func TestDate(t *testing.T) {
	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)
	_, err = ParseDate("2024-1-03")
	assert.Error(t, err)

	d := MustParseDate("2024-01-03")
	assert.Equal(t, Wednesday, d.Weekday())
	assert.Equal(t, MustParseDate("2024-01-01"), MondayOf(d))
	assert.Equal(t, MustParseDate("2024-01-01"), MondayOf(MustParseDate("2024-01-01")))
	assert.Equal(t, MustParseDate("2024-01-01"), MondayOf(MustParseDate("2024-01-07")))
	assert.Equal(t, MustParseDate("2024-03-01"), MustParseDate("2024-02-29").AddDays(1))

	assert.True(t, d.Within(MustParseDate("2024-01-03"), MustParseDate("2024-01-03")))
	assert.False(t, d.Within(MustParseDate("2024-01-04"), MustParseDate("2024-01-10")))
	assert.True(t, d.Before(MustParseDate("2024-01-10")))

	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	at := d.At(9*60+30, loc)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, d, DateOf(at))
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan([]byte("2024-05-06")))
	assert.Equal(t, MustParseDate("2024-05-06"), d)
	assert.Error(t, d.Scan("nope"))
	assert.Error(t, d.Scan(42))
}
