package command

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Since describes the distance between now and t in words, like
// "3 minutes and 12 seconds ago" or "2 days and 4 hours left".
func Since(now, t time.Time) string {
	end := "ago"
	if now.Before(t) {
		end = "left"
	}
	d := math.Abs(now.Sub(t).Seconds())
	var s string
	switch {
	case d < 60:
		s = strconv.FormatFloat(math.Round(d*10)/10, 'f', -1, 64) + " seconds"
	case d < 3600:
		s = fmt.Sprintf("%d minutes and %d seconds", int(d/60), int(math.Round(math.Mod(d, 60))))
	case d < 86400:
		s = fmt.Sprintf("%d hours and %d minutes", int(d/3600), int(math.Mod(d, 3600)/60))
	case d < 2592000:
		s = fmt.Sprintf("%d days and %d hours", int(d/86400), int(math.Mod(d, 86400)/3600))
	default:
		// Calendar difference, counted from the earlier time.
		a, b := t.UTC(), now.UTC()
		if b.Before(a) {
			a, b = b, a
		}
		y := b.Year() - a.Year()
		m := int(b.Month()) - int(a.Month())
		dd := b.Day() - a.Day()
		if m < 0 || (m == 0 && dd < 0) {
			y--
			m += 12
		}
		if dd < 0 {
			m--
			dd += 30
		}
		if d < 31536000 {
			s = fmt.Sprintf("%d months and %d days", m, dd)
		} else {
			s = fmt.Sprintf("%d years and %d months", y, m)
		}
	}
	return s + " " + end
}
