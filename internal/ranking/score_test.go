package ranking

import (
	"math"
	"testing"
	"time"
)

// TestHoursSince tests elapsed-hour computation including the future clamp.
func TestHoursSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		expected  float64
	}{
		{
			name:      "created now",
			createdAt: now,
			expected:  0,
		},
		{
			name:      "created 90 minutes ago",
			createdAt: now.Add(-90 * time.Minute),
			expected:  1.5,
		},
		{
			name:      "created a day ago",
			createdAt: now.Add(-24 * time.Hour),
			expected:  24,
		},
		{
			name:      "created in the future (edge case)",
			createdAt: now.Add(3 * time.Hour),
			expected:  0, // Future posts are treated as zero hours old
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HoursSince(tt.createdAt, now)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestScore tests the score formula against hand-computed values.
func TestScore(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		likes     int64
		views     int64
		createdAt time.Time
		expected  float64
	}{
		{
			name:      "brand new post",
			likes:     10,
			views:     100,
			createdAt: now,
			expected:  1000 / math.Pow(2, 1.8),
		},
		{
			name:      "two hours old",
			likes:     3,
			views:     7,
			createdAt: now.Add(-2 * time.Hour),
			expected:  21 / math.Pow(4, 1.8),
		},
		{
			name:      "no likes",
			likes:     0,
			views:     5000,
			createdAt: now.Add(-time.Hour),
			expected:  0,
		},
		{
			name:      "future post scores like a new post",
			likes:     10,
			views:     100,
			createdAt: now.Add(48 * time.Hour),
			expected:  1000 / math.Pow(2, 1.8),
		},
		{
			name:      "negative counts (edge case)",
			likes:     -4,
			views:     10,
			createdAt: now,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(tt.likes, tt.views, tt.createdAt, now, DefaultDecay())
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
			if math.IsNaN(result) || math.IsInf(result, 0) {
				t.Errorf("score must be finite, got %f", result)
			}
		})
	}
}

// TestScore_TimeMonotonicity verifies that the score never increases as time passes.
func TestScore_TimeMonotonicity(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	decay := DefaultDecay()

	for _, counts := range [][2]int64{{1, 1}, {5, 40}, {250, 10000}, {0, 100}} {
		previous := math.Inf(1)
		for minutes := -120; minutes <= 7*24*60; minutes += 37 {
			now := createdAt.Add(time.Duration(minutes) * time.Minute)
			score := Score(counts[0], counts[1], createdAt, now, decay)
			if score > previous {
				t.Fatalf("likes=%d views=%d: score increased from %f to %f at +%dm",
					counts[0], counts[1], previous, score, minutes)
			}
			previous = score
		}
	}
}

// TestScore_CountMonotonicity verifies that more likes or views never lower the score.
func TestScore_CountMonotonicity(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	createdAt := now.Add(-5 * time.Hour)
	decay := DefaultDecay()

	for likes := int64(0); likes < 20; likes++ {
		lower := Score(likes, 30, createdAt, now, decay)
		higher := Score(likes+1, 30, createdAt, now, decay)
		if higher < lower {
			t.Errorf("score decreased when likes went %d -> %d", likes, likes+1)
		}
	}

	for views := int64(0); views < 200; views += 7 {
		lower := Score(4, views, createdAt, now, decay)
		higher := Score(4, views+7, createdAt, now, decay)
		if higher < lower {
			t.Errorf("score decreased when views went %d -> %d", views, views+7)
		}
	}
}

// TestScore_InvalidDecayFallsBack tests that unusable constants use the defaults.
func TestScore_InvalidDecayFallsBack(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	expected := Score(2, 2, now, now, DefaultDecay())
	got := Score(2, 2, now, now, DecayParams{HourOffset: 0, Gravity: -1})

	if got != expected {
		t.Errorf("expected fallback score %f, got %f", expected, got)
	}
}
