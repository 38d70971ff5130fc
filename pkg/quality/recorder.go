package quality

import "time"

// Dataset outcome labels passed to Recorder.DatasetEvaluated
const (
	StatusClean    = "clean"
	StatusFindings = "findings"
	StatusSkipped  = "skipped"
	StatusCached   = "cached"
)

// Recorder receives engine measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RuleDuration(rule string, d time.Duration)
	RuleFailed(rule string)
	FindingRecorded(rule string, severity Severity)
	DatasetEvaluated(status string)
}

type nopRecorder struct{}

func (nopRecorder) RuleDuration(string, time.Duration) {}
func (nopRecorder) RuleFailed(string)                  {}
func (nopRecorder) FindingRecorded(string, Severity)   {}
func (nopRecorder) DatasetEvaluated(string)            {}

type multiRecorder []Recorder

// MultiRecorder fans measurements out to every recorder in rs
func MultiRecorder(rs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) RuleDuration(rule string, d time.Duration) {
	for _, r := range m {
		r.RuleDuration(rule, d)
	}
}

func (m multiRecorder) RuleFailed(rule string) {
	for _, r := range m {
		r.RuleFailed(rule)
	}
}

func (m multiRecorder) FindingRecorded(rule string, severity Severity) {
	for _, r := range m {
		r.FindingRecorded(rule, severity)
	}
}

func (m multiRecorder) DatasetEvaluated(status string) {
	for _, r := range m {
		r.DatasetEvaluated(status)
	}
}
