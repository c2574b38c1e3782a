// Package moderation - errors.go defines the closed set of recoverable caller
// errors returned by the lifecycle engine. Each carries a stable machine code
// so the HTTP layer can map it to a 4xx response without string matching.
// Storage errors are not part of this set; they propagate wrapped and map
// to 5xx.
package moderation

// Error is a recoverable validation, conflict, or policy failure. All values
// are package-level sentinels so call sites can compare with errors.Is.
type Error struct {
	// Code is the stable machine-readable error kind.
	Code string
	// Message is the human-readable default message.
	Message string
}

func (e *Error) Error() string { return e.Message }

// Not-found: the referenced entity does not exist.
var (
	ErrPostNotFound   = &Error{Code: "post_not_found", Message: "post not found"}
	ErrReportNotFound = &Error{Code: "report_not_found", Message: "report not found"}
	ErrAppealNotFound = &Error{Code: "appeal_not_found", Message: "appeal not found"}
)

// Conflict: the operation would violate a uniqueness or terminality invariant.
var (
	ErrAppealAlreadyOpen    = &Error{Code: "appeal_already_open", Message: "an active appeal already exists for this report and appellant"}
	ErrAppealAlreadyDecided = &Error{Code: "appeal_already_decided", Message: "appeal has already been decided"}
)

// Authorization precondition: caller-supplied identity or flags fail a policy
// gate enforced inside the engine. Authentication itself is external.
var (
	ErrAppellantNotEligible      = &Error{Code: "appellant_not_eligible", Message: "appellant must be the reporter or the author of the reported post"}
	ErrHumanConfirmationRequired = &Error{Code: "human_confirmation_required", Message: "explicit human confirmation is required for this operation"}
)

// Input validation.
var (
	ErrReasonRequired  = &Error{Code: "reason_required", Message: "reason must not be empty"}
	ErrReasonTooLong   = &Error{Code: "reason_too_long", Message: "reason exceeds the maximum length"}
	ErrInvalidStatus   = &Error{Code: "invalid_status", Message: "status must be triaged or resolved"}
	ErrInvalidDecision = &Error{Code: "invalid_decision", Message: "decision must be uphold or grant"}
)
