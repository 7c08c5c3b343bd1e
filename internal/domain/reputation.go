package domain

import "fmt"

// Status is the reputation verdict for a domain.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusClean
	StatusMalicious
)

// StatusFromSignal maps the reputation service's tri-state signal
// (1 clean, -1 malicious, 0 undefined).
func StatusFromSignal(signal int) (Status, error) {
	switch signal {
	case 1:
		return StatusClean, nil
	case -1:
		return StatusMalicious, nil
	case 0:
		return StatusUnknown, nil
	default:
		return StatusUnknown, fmt.Errorf("unexpected reputation status signal %d", signal)
	}
}

// Actionable reports whether the verdict warrants a possible alert.
func (s Status) Actionable() bool {
	switch s {
	case StatusMalicious, StatusUnknown:
		return true
	case StatusClean:
		return false
	default:
		panic(fmt.Sprintf("domain: unhandled status %d", s))
	}
}

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusMalicious:
		return "malicious"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type ReputationResult struct {
	Domain    string
	Status    Status
	RiskScore int
	// Categories are nil when the service reported none.
	SecurityCategories []string
	ContentCategories  []string
}
