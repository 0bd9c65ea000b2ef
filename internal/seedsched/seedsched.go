// Package seedsched defines the seeding protocol shared by recording and
// replay. Any divergence between the two sides silently breaks determinism,
// so both must call through this package rather than derive seeds inline.
package seedsched

// First returns the seed for the very first environment reset of a run.
func First(base int64) int64 {
	return base
}

// Next returns the seed for the reset that follows an episode ending at the
// 0-based global step index doneStep. The mapping depends on when the
// episode ended, not on an episode counter, so runs with the same base seed
// but different trajectories intentionally diverge into different reseeds.
func Next(base int64, doneStep int) int64 {
	return base + int64(doneStep) + 1
}
