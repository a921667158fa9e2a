package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// FormatError reports a wire time string that is not HH:MM:SS,mmm.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed wire time %q, want HH:MM:SS,mmm", e.Input)
}

var wireTimeRegexp = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// SecondsToWire renders a non-negative seconds value in the SRT wire format
// HH:MM:SS,mmm, flooring to the millisecond.
func SecondsToWire(sec float64) string {
	total := millisecondsIn(sec)

	hours := total / 3600000
	minutes := (total / 60000) % 60
	seconds := (total / 1000) % 60
	millis := total % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// WireToSeconds parses an HH:MM:SS,mmm wire time into seconds. It returns a
// *FormatError when the input does not match the wire format.
func WireToSeconds(s string) (float64, error) {
	matches := wireTimeRegexp.FindStringSubmatch(s)
	if matches == nil {
		return 0, &FormatError{Input: s}
	}

	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])
	millis, _ := strconv.Atoi(matches[4])

	return float64(hours)*3600 +
		float64(minutes)*60 +
		float64(seconds) +
		float64(millis)/1000, nil
}

// millisecondsIn floors sec to whole milliseconds. Values within a hair of a
// millisecond boundary snap to it, so millisecond-aligned floats survive the
// multiply-by-1000 round trip exactly.
func millisecondsIn(sec float64) int64 {
	if sec <= 0 {
		return 0
	}
	ms := sec * 1000
	rounded := math.Round(ms)
	if math.Abs(ms-rounded) < 1e-6 {
		return int64(rounded)
	}
	return int64(math.Floor(ms))
}
