package stage

import "strings"

// Health is a stage's readiness verdict. A stage is ready when it has neither
// a configuration problem nor a missing backend.
type Health struct {
	Stage   string
	Problem string
	Missing []string
}

func Healthy(stage string) Health { return Health{Stage: stage} }

// Misconfigured reports a configuration problem that blocks the stage.
func Misconfigured(stage string, err error) Health {
	return Health{Stage: stage, Problem: err.Error()}
}

// MissingBackends reports the backends the stage needs but could not open.
func MissingBackends(stage string, backends ...string) Health {
	return Health{Stage: stage, Missing: backends}
}

func (h Health) Ready() bool { return h.Problem == "" && len(h.Missing) == 0 }

// Detail explains why the stage is not ready; it is empty when it is.
func (h Health) Detail() string {
	switch {
	case h.Problem != "":
		return h.Problem
	case len(h.Missing) > 0:
		return "backend unavailable: " + strings.Join(h.Missing, ", ")
	}
	return ""
}

func (h Health) String() string {
	if h.Ready() {
		return h.Stage + ": ready"
	}
	return h.Stage + ": " + h.Detail()
}
