package services

import (
	"errors"
	"fmt"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"gorm.io/gorm"
)

// notFound turns a missing row into a coded NotFound error and wraps
// anything else with the lookup it came from.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Errorf(ledger.CodeNotFound, "%s %v not found", entity, id)
	}
	return fmt.Errorf("find %s %v: %w", entity, id, err)
}

func integrity(format string, args ...any) error {
	return ledger.Errorf(ledger.CodeIntegrityViolation, format, args...)
}
