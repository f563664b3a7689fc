package binder

import (
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
)

type mockFieldError struct {
	tag   string
	param string
	kind  reflect.Kind
}

func (e *mockFieldError) Error() string           { return "mock field error" }
func (e *mockFieldError) Tag() string             { return e.tag }
func (e *mockFieldError) ActualTag() string       { return e.tag }
func (e *mockFieldError) Namespace() string       { return "" }
func (e *mockFieldError) StructNamespace() string { return "" }
func (e *mockFieldError) Field() string           { return "location_token" }
func (e *mockFieldError) StructField() string     { return "LocationToken" }
func (e *mockFieldError) Value() interface{}      { return "" }
func (e *mockFieldError) Param() string           { return e.param }
func (e *mockFieldError) Kind() reflect.Kind {
	if e.kind == 0 {
		return reflect.String
	}
	return e.kind
}
func (e *mockFieldError) Type() reflect.Type               { return reflect.TypeOf("") }
func (e *mockFieldError) Translate(_ ut.Translator) string { return "" }

func TestFormatValidationError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag   string
		param string
		kind  reflect.Kind
		msg   string
	}{
		{location, "", 0, `"location_token" is not a valid location`},
		{abspath, "", 0, `"location_token" must be an absolute path`},
		{gt, "0", reflect.Int, `"location_token" must be greater than 0`},
		{mx, "2048", reflect.String, `"location_token" length must be less than or equal to 2048 characters`},
		{mx, "1", reflect.String, `"location_token" length must be less than or equal to 1 character`},
		{mn, "1", reflect.String, `"location_token" length must be greater than or equal to 1 character`},
		{mx, "72", reflect.Int, `"location_token" must be less than or equal to 72`},
		{mn, "1", reflect.Float64, `"location_token" must be greater than or equal to 1`},
		{mx, "5", reflect.Slice, `"location_token" length must be less than or equal to 5 elements`},
		{mn, "1", reflect.Slice, `"location_token" length must be greater than or equal to 1 element`},
		{ne, "", 0, `"location_token" can't be ""`},
		{oneof, "light dark sepia", 0, `"location_token" must be one of the following: "light", "dark", "sepia"`},
		{required, "", 0, `"location_token" is required`},
		{"hexcolor", "", 0, `"location_token" failed hexcolor validation`},
	}

	for _, tc := range cases {
		err := mockFieldError{tag: tc.tag, param: tc.param, kind: tc.kind}
		assert.Equal(t, tc.msg, formatValidationError(&err), tc.tag)
	}
}
