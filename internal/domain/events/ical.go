package events

import (
	"strings"

	ical "github.com/arran4/golang-ical"
)

const icalProductID = "-//slot-swapper//calendar export//EN"

// ExportICS serializa el calendario de un usuario como VCALENDAR (RFC 5545).
// El estado del slot viaja en CATEGORIES (BUSY / SWAPPABLE / SWAPPED).
func ExportICS(items []Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icalProductID)

	for _, e := range items {
		ve := cal.AddEvent(e.ID + "@slot-swapper")
		ve.SetDtStampTime(e.UpdatedAt.UTC())
		ve.SetCreatedTime(e.CreatedAt.UTC())
		ve.SetModifiedAt(e.UpdatedAt.UTC())
		ve.SetStartAt(e.StartTime.UTC())
		ve.SetEndAt(e.EndTime.UTC())
		ve.SetSummary(e.Title)
		if strings.TrimSpace(e.Description) != "" {
			ve.SetDescription(e.Description)
		}
		ve.AddProperty(ical.ComponentPropertyCategories, string(e.Status))
	}

	return cal.Serialize()
}
