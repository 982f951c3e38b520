package engine

// Idea temperatures. Display-only: never feeds freeze or retention logic.
const (
	TempCold = "cold"
	TempWarm = "warm"
	TempHot  = "hot"
)

// Temperature classifies engagement by open count.
func Temperature(openedCount int) string {
	switch {
	case openedCount >= 3:
		return TempHot
	case openedCount >= 1:
		return TempWarm
	default:
		return TempCold
	}
}
