package binder

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/shishobooks/lectern/pkg/errcodes"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// Context keys a handler can set before calling Bind to relax the defaults.
const (
	AllowEmptyBody     = "allow_empty_body"
	AllowUnknownFields = "allow_unknown_fields"
)

// Binder implements echo.Binder. Payloads are decoded, cleaned with mold,
// given their defaults and then validated.
type Binder struct {
	queryDecoder *schema.Decoder
	formDecoder  *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

func New() (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	formDecoder := schema.NewDecoder()
	formDecoder.SetAliasTag("form")

	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	if err := validate.RegisterValidation(location, locationValidator); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := validate.RegisterValidation(abspath, absPathValidator); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Binder{
		queryDecoder: queryDecoder,
		formDecoder:  formDecoder,
		conform:      modifiers.New(),
		validate:     validate,
	}, nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Tag.Get("query")
	}
	return name
}

func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	if req.ContentLength > 0 {
		if err := b.decodeBody(i, c); err != nil {
			return err
		}
	} else {
		switch req.Method {
		case http.MethodGet, http.MethodDelete:
			if err := b.decodeQuery(i, c.QueryParams(), b.queryDecoder); err != nil {
				return err
			}
		default:
			if allow, _ := c.Get(AllowEmptyBody).(bool); !allow {
				return errcodes.EmptyRequestBody()
			}
		}
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}
	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return errors.WithStack(err)
		}
		return errcodes.ValidationError(formatValidationError(errs[0]))
	}
	return nil
}

func (b *Binder) decodeBody(i interface{}, c echo.Context) error {
	req := c.Request()
	ctype := req.Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		defer req.Body.Close()
		dec := json.NewDecoder(req.Body)
		if allow, _ := c.Get(AllowUnknownFields).(bool); !allow {
			dec.DisallowUnknownFields()
		}
		err := dec.Decode(i)
		if err == nil {
			return nil
		}
		if matches := unknownFieldsRE.FindStringSubmatch(err.Error()); len(matches) > 1 {
			return errcodes.UnknownParameter(matches[1])
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
		}
		logger.FromEchoContext(c).Err(err).Warn("undecodable json payload")
		return errcodes.MalformedPayload()

	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		params, err := c.FormParams()
		if err != nil {
			return errcodes.MalformedPayload()
		}
		return b.decodeQuery(i, params, b.formDecoder)

	default:
		return errcodes.UnsupportedMediaType()
	}
}

func (b *Binder) decodeQuery(i interface{}, params url.Values, decoder *schema.Decoder) error {
	err := decoder.Decode(i, params)
	if err == nil {
		return nil
	}

	multi, ok := err.(schema.MultiError)
	if !ok {
		return errors.WithStack(err)
	}
	for _, e := range multi {
		switch e := e.(type) {
		case schema.ConversionError:
			return errcodes.ValidationTypeError(formatSchemaConversionError(e))
		case schema.UnknownKeyError:
			return errcodes.UnknownParameter(e.Key)
		}
	}
	return errors.WithStack(err)
}
