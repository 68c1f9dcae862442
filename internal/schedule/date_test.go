package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmeet/backend/internal/schedule"
)

func TestParseDate(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		d, ok := schedule.ParseDate("2025-01-10")
		require.True(t, ok)
		assert.Equal(t, schedule.Date{Year: 2025, Month: time.January, Day: 10}, d)
		assert.Equal(t, "2025-01-10", d.String())
	})

	t.Run("unpadded components", func(t *testing.T) {
		d, ok := schedule.ParseDate("2025-3-7")
		require.True(t, ok)
		assert.Equal(t, schedule.Date{Year: 2025, Month: time.March, Day: 7}, d)
	})

	invalid := []string{"", "2025-01", "2025/01/10", "2025-00-10", "2025-01-00", "2025-13-01", "2025-02-30", "abcd-01-10", "2025-01-10-01", "-2025-01-10"}
	for _, in := range invalid {
		t.Run("rejects "+in, func(t *testing.T) {
			_, ok := schedule.ParseDate(in)
			assert.False(t, ok)
		})
	}
}

func TestDeleteAt(t *testing.T) {
	d := schedule.Date{Year: 2025, Month: time.January, Day: 10}
	tests := []struct {
		name       string
		start, end schedule.Clock
		want       time.Time
	}{
		{"same day", schedule.Clock{Hour: 9}, schedule.Clock{Hour: 10}, time.Date(2025, time.January, 10, 10, 1, 0, 0, time.UTC)},
		{"equal start and end", schedule.Clock{Hour: 10}, schedule.Clock{Hour: 10}, time.Date(2025, time.January, 10, 10, 1, 0, 0, time.UTC)},
		{"wraps past midnight", schedule.Clock{Hour: 23}, schedule.Clock{Hour: 1}, time.Date(2025, time.January, 11, 1, 1, 0, 0, time.UTC)},
		{"ends at midnight", schedule.Clock{Hour: 22, Minute: 30}, schedule.Clock{Hour: 0}, time.Date(2025, time.January, 11, 0, 1, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schedule.DeleteAt(d, tt.start, tt.end, time.UTC)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(d.At(tt.start, time.UTC)))
		})
	}
}

func TestEndAt_MonthRollover(t *testing.T) {
	d := schedule.Date{Year: 2025, Month: time.January, Day: 31}
	got := schedule.EndAt(d, schedule.Clock{Hour: 23, Minute: 30}, schedule.Clock{Hour: 0, Minute: 45}, time.UTC)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 45, 0, 0, time.UTC), got)
}
