// Package validators holds the shared request validator.
package validators

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	once sync.Once
	v    *validator.Validate
)

// New returns the process-wide validator with custom tags registered.
func New() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("uuid_any", func(fl validator.FieldLevel) bool {
			_, err := uuid.Parse(fl.Field().String())
			return err == nil
		})
	})
	return v
}
