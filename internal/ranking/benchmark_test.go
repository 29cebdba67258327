package ranking

import (
	"testing"
	"time"
)

// BenchmarkScore benchmarks the score calculation.
func BenchmarkScore(b *testing.B) {
	now := time.Now()
	createdAt := now.Add(-6 * time.Hour)
	decay := DefaultDecay()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Score(42, 1300, createdAt, now, decay)
	}
}
