package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds returned by every service. Callers match them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("dependency unavailable")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrCyclicStructure = errors.New("cyclic comment structure")

	ErrAlreadyMember = fmt.Errorf("user is already a member: %w", ErrConflict)
)

// ValidationError reports the field and rule that rejected an input.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s failed on %q", ErrValidation, e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// wrap annotates err with op. It folds gorm's not-found into ErrNotFound and
// a translated unique-key violation into ErrConflict.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
