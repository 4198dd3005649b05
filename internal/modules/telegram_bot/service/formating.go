package service

import (
	"fmt"
	"sort"
	"strings"

	"market_pulse/internal/models"
)

// FormatStatus: сводка long/short и состояния стакана по всем инструментам.
func FormatStatus(m models.SnapshotMap) string {
	if len(m) == 0 {
		return "📭 Нет инструментов с ценами спота и фьючерсов"
	}
	symbols := make([]string, 0, len(m))
	for s := range m {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var b strings.Builder
	b.WriteString("*📊 Market pulse*\n")
	for _, s := range symbols {
		snap := m[s]
		fmt.Fprintf(&b, "`%-9s` %s  L `%s` / S `%s`  basis `%s%%`  %s\n",
			s, f2(snap.Spot.Price), f2(snap.LongPercentage), f2(snap.ShortPercentage),
			snap.SpreadPercent, stateEmoji(snap.OrderBookSignal.State))
	}
	return b.String()
}

func stateEmoji(s models.SignalState) string {
	switch s {
	case models.StateConfirmedLong:
		return "🟢"
	case models.StateConfirmedShort:
		return "🔴"
	case models.StateVolatile:
		return "⚡️"
	case models.StateLongDwell, models.StateShortDwell:
		return "⏳"
	}
	return "⚪️"
}

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }
