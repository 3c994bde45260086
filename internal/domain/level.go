package domain

import "math"

// ─── Level curve ────────────────────────────────────────────────────────────
// level = 1 + floor(sqrt(total / 100))
//   L1: 0-99, L2: 100-399, L3: 400-899, ...

// LevelForPoints returns the level for a point total.
func LevelForPoints(total int64) int {
	if total <= 0 {
		return 1
	}
	return 1 + int(math.Floor(math.Sqrt(float64(total)/100.0)))
}

// PointsRequiredForLevel returns the total needed to reach level+1.
func PointsRequiredForLevel(level int) int64 {
	l := int64(level)
	return l * l * 100
}

// LevelFloor returns the total at which level was first reached.
func LevelFloor(level int) int64 {
	if level <= 1 {
		return 0
	}
	return PointsRequiredForLevel(level - 1)
}

// ProgressToNextLevel returns how far total is through level, in percent.
func ProgressToNextLevel(total int64, level int) float64 {
	floor := LevelFloor(level)
	span := PointsRequiredForLevel(level) - floor
	if span <= 0 {
		return 0
	}
	return float64(total-floor) / float64(span) * 100.0
}
