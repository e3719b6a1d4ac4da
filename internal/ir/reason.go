package ir

// Reason is a stable code attached to every outcome, warning and error so
// downstream alerting can match on it. The set is closed.
type Reason string

const (
	ReasonAdmitted             Reason = "admitted"
	ReasonStatusSet            Reason = "status-set"
	ReasonSprintSet            Reason = "sprint-set"
	ReasonAssigneeAdded        Reason = "assignee-added"
	ReasonInheritedFromPR      Reason = "inherited-from-pr"
	ReasonAlreadyCurrent       Reason = "already-current"
	ReasonTransitionDisallowed Reason = "transition-disallowed"
	ReasonSuperseded           Reason = "superseded"
	ReasonNoCurrentSprint      Reason = "no-current-sprint"
	ReasonRateLimited          Reason = "rate-limited"
	ReasonNotFound             Reason = "not-found"
	ReasonUnauthorized         Reason = "unauthorized"
	ReasonServerError          Reason = "server-error"
	ReasonFetchFailed          Reason = "fetch-failed"
	ReasonCancelled            Reason = "cancelled"
)

// Reasons lists every reason code.
var Reasons = []Reason{
	ReasonAdmitted, ReasonStatusSet, ReasonSprintSet, ReasonAssigneeAdded,
	ReasonInheritedFromPR, ReasonAlreadyCurrent, ReasonTransitionDisallowed,
	ReasonSuperseded, ReasonNoCurrentSprint, ReasonRateLimited, ReasonNotFound,
	ReasonUnauthorized, ReasonServerError, ReasonFetchFailed, ReasonCancelled,
}
