package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOverdueFine(t *testing.T) {
	due := date(2024, time.January, 1)

	tests := []struct {
		name       string
		returnDate time.Time
		want       float64
	}{
		{"on time", date(2024, time.January, 1), 0.00},
		{"four days late", date(2024, time.January, 5), 4.00},
		{"early return", date(2023, time.December, 30), 0.00},
		{"one day late", date(2024, time.January, 2), 1.00},
		{"late in the evening still counts whole days", time.Date(2024, time.January, 2, 23, 59, 59, 0, time.UTC), 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OverdueFine(due, tt.returnDate, FinePerDay), 1e-9)
		})
	}
}

func TestDateOfTruncates(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 18, 30, 45, 123, time.UTC)
	assert.Equal(t, date(2024, time.March, 15), DateOf(ts))
}
