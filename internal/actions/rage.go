package actions

import "fmt"

const (
	DefaultRageMinClicks = 3
	DefaultRageWindowMs  = 1000
)

// RageClick is a burst of clicks on one node inside a short window. Replaying
// it repeats every click, which usually toggles state the user did not intend.
type RageClick struct {
	TargetID int64
	Count    int
	StartTs  int64
	EndTs    int64
}

func (r RageClick) String() string {
	return fmt.Sprintf("%d rapid clicks on node %d between %d and %d", r.Count, r.TargetID, r.StartTs, r.EndTs)
}

// DetectRageClicks finds runs of at least minClicks consecutive clicks on the
// same target where each click follows the first by no more than windowMs.
// Input actions between clicks end a run.
func DetectRageClicks(acts []Action, minClicks int, windowMs int64) []RageClick {
	if minClicks < 2 {
		minClicks = DefaultRageMinClicks
	}
	if windowMs <= 0 {
		windowMs = DefaultRageWindowMs
	}

	var out []RageClick
	var run []Action

	flush := func() {
		if len(run) >= minClicks {
			out = append(out, RageClick{
				TargetID: run[0].TargetID,
				Count:    len(run),
				StartTs:  run[0].Timestamp,
				EndTs:    run[len(run)-1].Timestamp,
			})
		}
		run = run[:0]
	}

	for _, a := range acts {
		if a.Kind != KindClick {
			flush()
			continue
		}
		if len(run) > 0 && (run[0].TargetID != a.TargetID || a.Timestamp-run[0].Timestamp > windowMs) {
			flush()
		}
		run = append(run, a)
	}
	flush()

	return out
}
