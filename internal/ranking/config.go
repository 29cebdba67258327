package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string      `json:"version"` // Config version for future compatibility
	Decay   DecayParams `json:"decay"`
}

// LoadCalibration loads decay constants from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns the defaults with an error.
// Partial configurations are merged with defaults.
func LoadCalibration(filePath string) (DecayParams, error) {
	if filePath == "" {
		return DefaultDecay(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultDecay(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultDecay(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultDecay()
	merged := MergeCalibration(defaults, config.Decay)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override constants into base.
// Only positive values from the override are applied.
func MergeCalibration(base, override DecayParams) DecayParams {
	result := base
	if override.HourOffset > 0 {
		result.HourOffset = override.HourOffset
	}
	if override.Gravity > 0 {
		result.Gravity = override.Gravity
	}
	return result
}

// logCalibrationOverrides logs which constants were overridden from defaults.
func logCalibrationOverrides(defaults, loaded DecayParams) {
	var overrides []string

	if loaded.HourOffset != defaults.HourOffset {
		overrides = append(overrides, fmt.Sprintf("decay.hour_offset: %.2f -> %.2f",
			defaults.HourOffset, loaded.HourOffset))
	}
	if loaded.Gravity != defaults.Gravity {
		overrides = append(overrides, fmt.Sprintf("decay.gravity: %.2f -> %.2f",
			defaults.Gravity, loaded.Gravity))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
