package playback

import (
	"fmt"
	"math"
	"strconv"
)

// TimePlaceholder is rendered for unknown or invalid times.
const TimePlaceholder = "--:--"

// maxFormattableSeconds keeps the minute count inside int64.
const maxFormattableSeconds = 1 << 53

// FormatTime formats seconds as MM:SS, truncating sub-second precision.
// Minutes are padded to at least two digits and are not wrapped into hours.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 || seconds >= maxFormattableSeconds {
		return TimePlaceholder
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// IndicatorKind is what a track row shows in its number column.
type IndicatorKind int

const (
	IndicatorNumber IndicatorKind = iota // 1-based track number
	IndicatorPlay                        // Play icon
	IndicatorPause                       // Pause icon
)

// Indicator is the content of a track row's number column.
type Indicator struct {
	Kind   IndicatorKind
	Number int // 1-based, set for IndicatorNumber
}

// String renders the indicator as "play-icon", "pause-icon" or the number.
func (i Indicator) String() string {
	switch i.Kind {
	case IndicatorPlay:
		return "play-icon"
	case IndicatorPause:
		return "pause-icon"
	default:
		return strconv.Itoa(i.Number)
	}
}

// rowIndicator derives the indicator of row index from the given state.
// The icon always shows what clicking the row would do.
func rowIndicator(index, current, hovered int, state State) Indicator {
	playingHere := index == current && state == StatePlaying
	switch {
	case index == hovered, index == current:
		if playingHere {
			return Indicator{Kind: IndicatorPause}
		}
		return Indicator{Kind: IndicatorPlay}
	default:
		return Indicator{Kind: IndicatorNumber, Number: index + 1}
	}
}

func knownDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

// sanitizeSeconds maps non-finite and negative values to 0.
func sanitizeSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
