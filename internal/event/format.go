// Package event turns a reputation verdict into the alert posted to Cyber Vision.
package event

import (
	"fmt"
	"strings"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/domain"
)

// Format builds the alert for a sighting. The sentence mentions only the
// category lists Umbrella returned, so it has four shapes.
func Format(result domain.ReputationResult, obs domain.Observation) domain.EventPayload {
	var b strings.Builder

	name := result.Domain
	if name == "" {
		name = obs.Domain
	}

	fmt.Fprintf(&b, "The domain %s %s and it has been queried by %s on %s. Its associated risk score is %d/100.",
		name, verdict(result.Status), querier(obs), obs.Time, result.RiskScore)

	content := strings.Join(result.ContentCategories, ", ")
	security := strings.Join(result.SecurityCategories, ", ")
	switch {
	case content != "" && security != "":
		fmt.Fprintf(&b, " We have found %s as its Content Categories, and %s as its Security Categories.", content, security)
	case security != "":
		fmt.Fprintf(&b, " We have found %s as its Security Categories.", security)
	case content != "":
		fmt.Fprintf(&b, " We have found %s as its Content Categories.", content)
	}

	return domain.EventPayload{
		Task: domain.EventTask,
		Alert: domain.Alert{
			EventType: domain.EventType,
			Message:   b.String(),
		},
	}
}

func verdict(s domain.Status) string {
	switch s {
	case domain.StatusMalicious:
		return "is malicious"
	case domain.StatusUnknown:
		return "has an unknown reputation"
	case domain.StatusClean:
		return "is clean"
	default:
		panic(fmt.Sprintf("event: unhandled status %d", s))
	}
}

func querier(obs domain.Observation) string {
	if !obs.HasIP() {
		return "an unidentified host"
	}
	return "the IP " + obs.IP
}
