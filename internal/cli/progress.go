package cli

import (
	"fmt"
	"strings"
)

// ─── Level Progress Bar ─────────────────────────────────────────────────────
// Renders progress through the current level for `stride stats`:
//   [=============>................]  45% | 235 / 400 pts

const barWidth = 30 // Characters for the progress bar

func levelBar(total, next int64, pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}

	return fmt.Sprintf("[%s] %3.0f%% | %d / %d pts", bar, pct, total, next)
}
