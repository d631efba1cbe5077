package service

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"lob/domain/orderbook"
)

var (
	// ErrInvalidRequest marks a request refused before it reached the book.
	ErrInvalidRequest = errors.New("invalid request")
	ErrEngineStopped  = errors.New("engine stopped")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	v.RegisterValidation("side", func(fl validator.FieldLevel) bool {
		return orderbook.Side(fl.Field().Int()).Valid()
	})
	return v
}

// estimateRequest and cancelRequest only exist to carry tags for the
// entry points that take bare arguments.
type estimateRequest struct {
	Side     orderbook.Side `validate:"side"`
	Quantity float64        `validate:"finite,gte=0"`
}

type cancelRequest struct {
	ID string `validate:"required"`
}

// validateRequest checks req against its struct tags. The first failing
// rule becomes the error, marked ErrInvalidRequest.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return errors.Mark(errors.Wrap(err, "validate request"), ErrInvalidRequest)
	}
	return errors.Mark(fieldError(fields[0]), ErrInvalidRequest)
}

func fieldError(fe validator.FieldError) error {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return errors.Newf("%s is required", name)
	case "side":
		return errors.Newf("unknown side %d", fe.Value())
	case "finite":
		return errors.Newf("%s %v is not finite", name, fe.Value())
	case "gt":
		return errors.Newf("%s %v must be greater than %s", name, fe.Value(), fe.Param())
	case "gte":
		return errors.Newf("%s %v must be at least %s", name, fe.Value(), fe.Param())
	}
	return errors.Newf("%s %v fails %s", name, fe.Value(), fe.Tag())
}
