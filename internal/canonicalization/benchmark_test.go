package canonicalization

import "testing"

// ==============================================================================
// Benchmarks: Normalization Performance
// ==============================================================================

func Benchmark_DimensionKey(b *testing.B) {
	if !testing.Short() {
		b.Skip("skipping benchmark in non-short mode")
	}

	names := []string{
		"Kubernetes",
		"  kubernetes ",
		"Google\tCloud   Platform",
		"PostgreSQL",
		"Microsoft Azure DevOps",
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, n := range names {
			_ = DimensionKey(n)
		}
	}
}

func Benchmark_IsSyntheticPersonID(b *testing.B) {
	if !testing.Short() {
		b.Skip("skipping benchmark in non-short mode")
	}

	ids := []string{"1", "3f9a0c1e", "EMP-4821", "00012345"}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, id := range ids {
			_ = IsSyntheticPersonID(id)
		}
	}
}
