package area

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Allowed inputs for the calculation form.
var (
	ValidX = []float64{-3, -2, -1, 0, 1, 2, 3, 4}
	ValidR = []float64{1, 2, 3, 4, 5}
)

const (
	MinY = -5.0
	MaxY = 5.0

	gridTolerance = 1e-9
)

// ErrInvalidPoint wraps every validation failure returned by Point.Validate.
var ErrInvalidPoint = errors.New("invalid point")

// Point is a user-submitted test point.
type Point struct {
	X float64 `validate:"finite,xgrid"`
	Y float64 `validate:"finite,min=-5,max=5"`
	R float64 `validate:"finite,rgrid"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	v.RegisterValidation("xgrid", onGrid(ValidX))
	v.RegisterValidation("rgrid", onGrid(ValidR))
	return v
}

func onGrid(values []float64) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Float64 {
			return false
		}
		f := fl.Field().Float()
		for _, v := range values {
			if math.Abs(f-v) < gridTolerance {
				return true
			}
		}
		return false
	}
}

// Validate checks the point against the allowed input ranges.
func (p Point) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidPoint, strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Contains evaluates the region predicate for the point.
func (p Point) Contains() bool {
	return Contains(p.X, p.Y, p.R)
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "finite":
		return fmt.Sprintf("%s must be a finite number", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "xgrid":
		return fmt.Sprintf("%s must be one of %v", field, ValidX)
	case "rgrid":
		return fmt.Sprintf("%s must be one of %v", field, ValidR)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
