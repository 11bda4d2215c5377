// Package errors builds error responses of the service.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`

	// kind of the error, like "invalid match state".
	Type   string `json:"type,omitempty"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Type   *string `json:"type,omitempty"`
		Advice *string `json:"advice,omitempty"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason

	if f.Type != nil {
		em.Type = *f.Type
	}
	if f.Advice != nil {
		em.Advice = *f.Advice
	}
	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func WithType(kind error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if kind != nil {
			in.Type = kind.Error()
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound() *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found")
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Unauthorized(advice string) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusUnauthorized,
		"unauthorized",
		WithAdvice(advice),
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithError(err),
	)
}

type mapping struct {
	status int
	kinds  []error
}

// status codes for domain errors. The first matched one is used.
var mappings = []mapping{
	{
		status: http.StatusBadRequest,
		kinds: []error{
			domerr.ErrInvalidFilter,
			domerr.ErrUnknownColumn,
			domerr.ErrNonFilterableColumn,
			domerr.ErrInvalidSortColumn,
			domerr.ErrTooManyIds,
			domerr.ErrNoRegisteredMatcher,
			domerr.ErrNoSuchMatcher,
			domerr.ErrNoRegisteredDataProduct,
			domerr.ErrNoSuchDataProduct,
			domerr.ErrMissingLineage,
			domerr.ErrLineageVersion,
			domerr.ErrInvalidInput,
		},
	},
	{
		status: http.StatusConflict,
		kinds: []error{
			domerr.ErrInvalidMatchState,
			domerr.ErrInvalidSelectionState,
			domerr.ErrCollectionVersionExists,
		},
	},
	{
		status: http.StatusNotFound,
		kinds: []error{
			domerr.ErrMatchNotFound,
			domerr.ErrSelectionNotFound,
			domerr.ErrNoSuchCollection,
			domerr.ErrNoSuchCollectionVersion,
		},
	},
	{
		status: http.StatusForbidden,
		kinds:  []error{domerr.ErrDataPermission},
	},
	{
		status: http.StatusBadGateway,
		kinds:  []error{domerr.ErrSourceDataUnavailable},
	},
}

// Status returns the HTTP status code for err, and the kind of err.
//
// Unknown errors are 500, with nil kind.
func Status(err error) (int, error) {
	for _, m := range mappings {
		for _, kind := range m.kinds {
			if errors.Is(err, kind) {
				return m.status, kind
			}
		}
	}
	return http.StatusInternalServerError, nil
}

// FromDomain converts err into an error response.
//
// *echo.HTTPError is returned as is.
func FromDomain(err error) *echo.HTTPError {
	if herr := new(echo.HTTPError); errors.As(err, &herr) {
		return herr
	}
	status, kind := Status(err)
	if kind == nil {
		return InternalServerError(err)
	}
	return NewErrorMessage(status, domerr.Message(err), WithType(kind), WithError(err))
}
