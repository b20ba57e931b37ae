package model

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity marks a stored or constructed record that is missing
// required fields or breaks an entity invariant.
var ErrDataIntegrity = errors.New("data integrity violation")

func integrityError(entity, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrDataIntegrity, entity, fmt.Sprintf(format, args...))
}
