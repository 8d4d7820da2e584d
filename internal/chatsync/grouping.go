package chatsync

import "time"

const dayLabelLayout = "January 2, 2006"

// DayGroup holds the messages of one local calendar day in ascending order.
type DayGroup struct {
	Label   string
	Day     time.Time
	Entries []Entry
}

// GroupByDay splits entries by calendar day in loc. Labels are relative to now:
// "Today", "Yesterday", otherwise the full date.
func GroupByDay(entries []Entry, now time.Time, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]Entry(nil), entries...)
	sortEntries(sorted)

	today := startOfDay(now.In(loc))
	yesterday := today.AddDate(0, 0, -1)

	var groups []DayGroup
	for _, e := range sorted {
		day := startOfDay(e.Message.Timestamp.In(loc))
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Entries = append(groups[n-1].Entries, e)
			continue
		}
		groups = append(groups, DayGroup{Label: dayLabel(day, today, yesterday), Day: day, Entries: []Entry{e}})
	}
	return groups
}

func dayLabel(day, today, yesterday time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(yesterday):
		return "Yesterday"
	default:
		return day.Format(dayLabelLayout)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
