package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrConflict is returned when a write collides with a unique constraint.
var ErrConflict = errors.New("record conflicts with an existing row")

// isDuplicateKey recognises unique violations whether or not the dialector
// translated them into gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "constraint failed: unique")
}
