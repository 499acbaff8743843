package engine

import (
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/trigger"
)

// EvaluateChange is the change guard for the scoring path. Given the
// freshly computed total and the total currently stored on the
// submission, it reports whether propagation must run and the signed
// delta to apply. A zero delta means the record is already consistent;
// this is what absorbs the propagator's own write-back trigger and
// breaks the self-trigger loop.
func EvaluateChange(computed, stored int) (delta int, proceed bool) {
	delta = computed - stored
	return delta, delta != 0
}

// AnalyticsRelevant is the change guard for the analytics path. A
// delivery matters when it enters, leaves, or changes the total of a
// scored state; everything else (unscored churn, duplicate deliveries
// of an already-applied write) is ignored.
func AnalyticsRelevant(before, after *trigger.SubmissionSnapshot) bool {
	if after == nil {
		return false
	}

	isScored := after.Status == models.SubmissionStatusScored
	wasScored := before != nil && before.Status == models.SubmissionStatusScored
	if !isScored && !wasScored {
		return false
	}

	scoreChanged := before == nil || before.TotalPointsAwarded != after.TotalPointsAwarded
	if isScored && wasScored && !scoreChanged {
		return false
	}

	return true
}
