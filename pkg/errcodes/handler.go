package errcodes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
	golog "github.com/robinjoseph08/golib/logger"
)

// StatusClientClosedRequest is reported when the caller went away while a
// session operation was still waiting on the actor.
const StatusClientClosedRequest = 499

var loadFailureKinds = map[string]struct{}{
	KindUnpack:         {},
	KindStructureParse: {},
	KindLoadTimeout:    {},
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle renders err as {"error":{code,message,status_code}}. Anything that
// isn't an echo or errcodes error becomes a 500.
func (h *Handler) Handle(err error, c echo.Context) {
	log := logger.FromEchoContext(c)
	if errutils.IsIgnorableErr(err) {
		log.Err(err).Warn("broken pipe")
		return
	}
	if c.Response().Committed {
		log.Err(err).Warn("error after response was committed")
		return
	}

	e := Classify(err)
	switch {
	case e.HTTPCode >= http.StatusInternalServerError:
		log.Err(err).Error("server error")
	case isLoadFailure(e):
		log.Err(err).Warn("document load failed", golog.Data{"kind": e.Code})
	}

	if err := c.JSON(e.HTTPCode, Payload(e)); err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

// Classify maps any error onto an *Error.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{HTTPCode: e.HTTPCode, Message: e.Message, Code: e.Code}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return &Error{HTTPCode: he.Code, Message: msg, Code: strcase.ToSnake(msg)}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{HTTPCode: StatusClientClosedRequest, Message: "Request canceled", Code: "request_canceled"}
	}

	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Message:  "Internal Server Error",
		Code:     "internal_server_error",
	}
}

func Payload(e *Error) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":        e.Code,
			"message":     e.Message,
			"status_code": e.HTTPCode,
		},
	}
}

func isLoadFailure(e *Error) bool {
	_, ok := loadFailureKinds[e.Code]
	return ok
}
