package service

import "errors"

// Kind groups domain errors by how a caller should react to them.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidState
	KindValidation
	KindAuthorization
	KindToken
)

// Error is an expected, caller-recoverable failure of an attendance
// operation.  Storage failures are never reported as *Error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrSessionNotFound     = &Error{KindNotFound, "session_not_found", "session not found"}
	ErrPersonnelNotFound   = &Error{KindNotFound, "personnel_not_found", "personnel not found"}
	ErrSessionNotActive    = &Error{KindInvalidState, "session_not_active", "session is not active"}
	ErrSessionAlreadyEnded = &Error{KindInvalidState, "session_already_ended", "session has already ended"}
	ErrAlreadyCheckedIn    = &Error{KindInvalidState, "already_checked_in", "already checked in"}
	ErrNoActiveCheckIn     = &Error{KindInvalidState, "no_active_checkin", "no active check-in found"}
	ErrInvalidEventType    = &Error{KindValidation, "invalid_event_type", "invalid event type"}
	ErrForbidden           = &Error{KindAuthorization, "forbidden", "forbidden"}
	ErrInsufficientRank    = &Error{KindAuthorization, "insufficient_rank", "rank too low to end this session"}
	ErrInvalidToken        = &Error{KindToken, "invalid_token", "invalid or expired QR code"}

	ErrGroupNotFound        = &Error{KindNotFound, "group_not_found", "group not found"}
	ErrUnknownGroup         = &Error{KindValidation, "unknown_group", "group_id does not name an existing group"}
	ErrDuplicateGroup       = &Error{KindValidation, "duplicate_group", "group name already exists"}
	ErrAnnouncementNotFound = &Error{KindNotFound, "announcement_not_found", "announcement not found"}
	ErrNewsNotFound         = &Error{KindNotFound, "news_not_found", "news not found"}
	ErrEventNotFound        = &Error{KindNotFound, "event_not_found", "event not found"}
	ErrRegistrationNotFound = &Error{KindNotFound, "registration_not_found", "registration not found"}
	ErrAlreadyRegistered    = &Error{KindInvalidState, "already_registered", "already registered"}
	ErrEventFull            = &Error{KindInvalidState, "event_full", "maximum number of participants reached"}
	ErrDutyNotFound         = &Error{KindNotFound, "duty_not_found", "duty not found"}
	ErrInvalidTimeRange     = &Error{KindValidation, "invalid_time_range", "time range ends before it starts"}
)

// AsError unwraps err into a domain *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
