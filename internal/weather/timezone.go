package weather

import (
	"fmt"
	"math"
)

const (
	UnknownTimezone   = "Unknown Timezone"
	DetectingTimezone = "Detecting timezone..."
)

// usTimezones maps whole-hour UTC offsets to US zone names. Anything else
// falls back to Pacific.
var usTimezones = map[int]string{
	-5:  "Eastern",
	-6:  "Central",
	-7:  "Mountain",
	-8:  "Pacific",
	-9:  "Alaska",
	-10: "Hawaii",
}

// FormatTimezone renders a UTC offset in seconds as a label such as
// "Pacific Time Zone (UTC-08:00)". A nil offset yields UnknownTimezone.
func FormatTimezone(offsetSeconds *int) string {
	if offsetSeconds == nil {
		return UnknownTimezone
	}
	return FormatOffsetSeconds(float64(*offsetSeconds))
}

// FormatOffsetSeconds is FormatTimezone for raw numeric input; NaN and
// infinities yield UnknownTimezone. Fractional hours are truncated.
func FormatOffsetSeconds(offsetSeconds float64) string {
	if !isFinite(offsetSeconds) {
		return UnknownTimezone
	}

	hours := offsetSeconds / 3600
	name := "Pacific"
	if hours == math.Trunc(hours) {
		if n, ok := usTimezones[int(hours)]; ok {
			name = n
		}
	}

	sign := "+"
	if hours < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s Time Zone (UTC%s%02d:00)", name, sign, int(math.Abs(math.Trunc(hours))))
}
