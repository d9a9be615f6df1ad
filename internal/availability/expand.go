package availability

import (
	"sort"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// capacityOn merges the active templates for date's weekday into slot start
// times. Overlapping templates yield the larger capacity for a shared time.
func capacityOn(templates []schedule.Template, date time.Time) map[slot.Clock]int {
	weekday := date.Weekday()
	out := make(map[slot.Clock]int)
	for _, t := range templates {
		if !t.Active || t.Weekday != weekday {
			continue
		}
		for _, c := range t.Steps() {
			if t.Capacity > out[c] {
				out[c] = t.Capacity
			}
		}
	}
	return out
}

func sortedClocks(m map[slot.Clock]int) []slot.Clock {
	out := make([]slot.Clock, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// days returns every civil date in [from, to].
func days(from, to time.Time) []time.Time {
	var out []time.Time
	for d := slot.Date(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
