package classify

import "time"

// nowUTC is the clock used by age calculations; a var so tests can override it.
var nowUTC = func() time.Time { return time.Now().UTC() }

// parseTime parses the RFC3339 timestamps gitenrich writes onto nodes.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
