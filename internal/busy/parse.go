package busy

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	// NoTitle labels feed events without a SUMMARY
	NoTitle = "No Title"

	maxOccurrencesPerEvent = 5000
)

// feedEvent is one VEVENT as read from a feed, before recurrence expansion
type feedEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
	RRule   string
	ExDates []time.Time
}

// parseFeed reads every VEVENT of an ICS payload. Events without a usable
// start are skipped.
func parseFeed(body []byte) ([]feedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]feedEvent, 0)
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (feedEvent, bool) {
	var ev feedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = strings.TrimSpace(p.Value)
	}
	if ev.Summary == "" {
		ev.Summary = NoTitle
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, false
	}
	ev.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if !strings.Contains(p.Value, "T") {
			ev.AllDay = true
		}
	}

	end, err := ve.GetEndAt()
	switch {
	case err == nil && end.After(start):
		ev.End = end
	case ev.AllDay:
		ev.End = start.Add(24 * time.Hour)
	default:
		return ev, false
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	return ev, true
}

// parseICSTime handles the bare DATE and DATE-TIME forms found in EXDATE
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// occurrence is one concrete instance of a feed event
type occurrence struct {
	Start time.Time
	End   time.Time
}

// expand returns the instances of ev that overlap [from, to)
func expand(ev feedEvent, from, to time.Time) []occurrence {
	if ev.RRule == "" {
		if ev.Start.Before(to) && ev.End.After(from) {
			return []occurrence{{Start: ev.Start, End: ev.End}}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// widen by the duration so instances that started before the window still count
	starts := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if s.Before(to) && e.After(from) {
			out = append(out, occurrence{Start: s, End: e})
		}
	}
	return out
}
