// Package ranking provides the recommendation score used by the
// recommended feed, with calibration support for the decay constants.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	decay, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default decay", "error", err)
//	}
//
//	score := ranking.Score(likes, views, post.CreatedAt, time.Now(), decay)
//
// Formula:
//
//	score = likes * views / (hoursSince(createdAt, now) + HourOffset) ^ Gravity
//
// With the defaults (HourOffset 2, Gravity 1.8) the denominator is always at
// least 2^1.8, so the score is defined for every post including brand new
// ones. Posts created after now are treated as zero hours old.
//
// Calibration:
//
// The calibration file is a small JSON document loaded at startup. Missing or
// zero fields keep their defaults, so a file may override a single constant.
// A restart is required to pick up changes.
package ranking
