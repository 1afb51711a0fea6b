package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralizePoints(t *testing.T) {
	cases := map[int64]string{
		1:   "балл",
		2:   "балла",
		4:   "балла",
		5:   "баллов",
		11:  "баллов",
		12:  "баллов",
		21:  "балл",
		22:  "балла",
		100: "баллов",
		111: "баллов",
		121: "балл",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizePoints(n), "n=%d", n)
	}
}

func TestFormatPointsAmount(t *testing.T) {
	assert.Equal(t, "+30 баллов", FormatPointsAmount(30))
	assert.Equal(t, "+1 балл", FormatPointsAmount(1))
	assert.Equal(t, "-50 баллов", FormatPointsAmount(-50))
	assert.Equal(t, "-2 балла", FormatPointsAmount(-2))
	assert.Equal(t, "+0 баллов", FormatPointsAmount(0))
}

func TestFormatDateTime(t *testing.T) {
	// 31.08.2026 09:00 UTC = 12:00 по Москве
	ts := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "31.08.2026 12:00", FormatDateTime(ts))
}
