package calendar

// FormatTimeRange renders an event's start/end pair for list views. All-day
// events render as "Dia inteiro" instead of a clock time.
func FormatTimeRange(e UnifiedEvent) string {
	if e.AllDay {
		return "Dia inteiro"
	}
	return e.StartsAt.Format("15:04") + " - " + e.EndsAt.Format("15:04")
}
