package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/vestique/internal/model"
)

func timesWorn(n int) string {
	if n <= 1 {
		return "for the first time"
	}
	return "for the " + humanize.Ordinal(n) + " time"
}

func daysAgo(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "yesterday"
	}
	return fmt.Sprintf("%d days ago", days)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func itemSize(it model.Item) string {
	total := len(it.Image)
	for i, ref := range it.ReferenceImages {
		// The first view usually shares the primary blob.
		if i == 0 && len(ref) == len(it.Image) {
			continue
		}
		total += len(ref)
	}
	return humanize.Bytes(uint64(total))
}
