package binder

import (
	"path/filepath"

	"github.com/go-playground/validator/v10"
	locationpkg "github.com/shishobooks/lectern/pkg/location"
)

// locationValidator accepts any string the location grammar can classify.
// Empty strings pass so the tag can sit beside omitempty or required.
func locationValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := locationpkg.Parse(value)
	return err == nil
}

func absPathValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return filepath.IsAbs(value) && filepath.Clean(value) == value
}
