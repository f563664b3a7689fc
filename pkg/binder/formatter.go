package binder

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

const (
	abspath  = "abspath"
	gt       = "gt"
	gte      = "gte"
	location = "location"
	mx       = "max"
	mn       = "min"
	ne       = "ne"
	oneof    = "oneof"
	required = "required"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func isNumeric(k reflect.Kind) bool {
	switch k { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func formatBound(err validator.FieldError, comparison string) string {
	field := err.Field()
	if isNumeric(err.Kind()) {
		return fmt.Sprintf("%q must be %s %s", field, comparison, err.Param())
	}
	resource := "character"
	if err.Kind() == reflect.Slice {
		resource = "element"
	}
	if err.Param() != "1" {
		resource += "s"
	}
	return fmt.Sprintf("%q length must be %s %s %s", field, comparison, err.Param(), resource)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case abspath:
		return fmt.Sprintf("%q must be an absolute path", field)
	case location:
		return fmt.Sprintf("%q is not a valid location", field)
	case gt:
		return fmt.Sprintf("%q must be greater than %s", field, err.Param())
	case gte:
		return fmt.Sprintf("%q must be greater than or equal to %s", field, err.Param())
	case mx:
		return formatBound(err, "less than or equal to")
	case mn:
		return formatBound(err, "greater than or equal to")
	case ne:
		return fmt.Sprintf("%q can't be %q", field, err.Param())
	case oneof:
		valids := make([]string, 0, len(strings.Fields(err.Param())))
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case required:
		return fmt.Sprintf("%q is required", field)
	default:
		return fmt.Sprintf("%q failed %s validation", field, err.Tag())
	}
}
