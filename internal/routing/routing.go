// Package routing maps a classification onto a routing decision.
package routing

import "triage/internal/triage"

// Route is total and pure: only a high priority notifies. Unknown priority
// labels are treated like low.
func Route(result triage.ClassificationResult) triage.Decision {
	if result.Priority == triage.PriorityHigh {
		return triage.DecisionNotify
	}
	return triage.DecisionStoreOnly
}
