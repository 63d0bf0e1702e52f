package domain

type Severity string

const (
	SeverityBlocker Severity = "BLOCKER"
	SeverityWarn    Severity = "WARN"
	SeverityInfo    Severity = "INFO"
)

// Rank orders severities for aggregation. Unknown severities rank below INFO.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlocker:
		return 3
	case SeverityWarn:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Finding is the outcome of one rule evaluated against one run.
type Finding struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Passed   bool     `json:"passed"`
	Details  string   `json:"details"`
}

type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)
