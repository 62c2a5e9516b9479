package bars

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// EnforceSanity is the post-build defensive clamp for modes that prefer
// repair over rejection. It guarantees high >= max(open, close) and
// low <= min(open, close) on every row and keeps time_low inside the bar
// window. Nothing is rejected here: this is a last-resort floor under the
// output contract, not a quality gate.
func EnforceSanity(rows []SnapshotRow) []SnapshotRow {
	clamped := 0
	for i := range rows {
		r := &rows[i]

		hi := math.Max(r.Open, r.Close)
		if math.IsNaN(r.High) || r.High < hi {
			r.High = hi
			clamped++
		}

		lo := math.Min(r.Open, r.Close)
		if math.IsNaN(r.Low) || r.Low > lo {
			r.Low = lo
			r.TimeLow = lowEndpoint(r)
			clamped++
		}

		if r.TimeLow.After(r.TimeClose) {
			r.Low = lo
			r.TimeLow = lowEndpoint(r)
			clamped++
		}
	}
	if clamped > 0 {
		log.Warn().Int("clamped", clamped).Msg("sanity enforcer clamped snapshot rows")
	}
	return rows
}

// lowEndpoint picks the window endpoint consistent with the bar's direction:
// a down bar bottoms at its close, an up bar at its open.
func lowEndpoint(r *SnapshotRow) time.Time {
	if r.Close < r.Open {
		return r.TimeClose
	}
	return r.TimeOpen
}
