package course

import "github.com/runcrew/service-running/internal/common/domain"

// Sentinel errors returned by Builder. Match them with errors.Is.
var (
	ErrInvalidCoordinate = &domain.DomainError{Code: domain.CodeValidation, Message: "invalid coordinate"}
	ErrCapacityExceeded  = &domain.DomainError{Code: domain.CodeConflict, Message: "course waypoint capacity exceeded"}
	ErrCannotRemoveStart = &domain.DomainError{Code: domain.CodeValidation, Message: "the start waypoint can only be removed by clearing the course"}
	ErrRouteTooShort     = &domain.DomainError{Code: domain.CodeValidation, Message: "a course needs at least 2 waypoints"}
	ErrInvalidIndex      = &domain.DomainError{Code: domain.CodeValidation, Message: "waypoint index out of range"}
)
