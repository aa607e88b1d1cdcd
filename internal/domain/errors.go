package domain

import "errors"

// Domain errors
var (
	ErrTeamNotFound             = errors.New("team not found")
	ErrRoundNotFound            = errors.New("round not found")
	ErrScoreNotFound            = errors.New("score not found for team and round")
	ErrUserNotFound             = errors.New("user not found")
	ErrTeamExists               = errors.New("team already exists")
	ErrPermissionDenied         = errors.New("permission denied: admin role required")
	ErrValidationFailed         = errors.New("validation failed")
	ErrRemoteNotificationFailed = errors.New("remote notification failed")
	ErrStandingsNotPublished    = errors.New("standings not published")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrInternalError            = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrRoundNotFound) ||
		errors.Is(err, ErrScoreNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrStandingsNotPublished)
}
