package httpapi

import (
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
)

// Feed handles GET /api/events/feed.ics and serves the unified timeline as an
// iCalendar document, so the merged view is subscribable from any calendar
// client.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	snap := h.calendars.ForUser(user.ID).Refresh(r.Context())
	if snap.Status != calendar.StatusReady {
		writeError(w, providerErrorStatus(snap.Err), providerErrorMessage(r, snap.Err))
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//agenda//calendar feed//PT")

	now := time.Now().UTC()
	for _, e := range snap.Events {
		ev := cal.AddEvent(e.ID + "@agenda")
		ev.SetDtStampTime(now)
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.AllDay {
			ev.SetAllDayStartAt(e.StartsAt)
			ev.SetAllDayEndAt(e.EndsAt)
		} else {
			ev.SetStartAt(e.StartsAt)
			ev.SetEndAt(e.EndsAt)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
	_, _ = w.Write([]byte(cal.Serialize()))
}
