package middleware

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/timegrid"
)

var registerOnce sync.Once

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "is too short or too small",
	"max":      "is too long or too large",
	"oneof":    "has an unsupported value",
	"ymd":      "must be a YYYY-MM-DD date",
	"hhmm":     "must be an HH:MM time",
}

// RegisterValidators adds the ymd and hhmm tags to gin's validator and makes
// field errors use JSON names.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		if err = v.RegisterValidation("ymd", validateYMD); err != nil {
			return
		}
		err = v.RegisterValidation("hhmm", validateHHMM)
	})
	return err
}

func validateYMD(fl validator.FieldLevel) bool {
	_, err := timegrid.ParseDate(fl.Field().String())
	return err == nil
}

func validateHHMM(fl validator.FieldLevel) bool {
	_, err := timegrid.TimeToMinutes(fl.Field().String())
	return err == nil
}

// BindingError converts a gin binding failure into a validation AppError
// listing each offending field.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewBadRequest("malformed request body", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag()
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return errors.Validation("%s", strings.Join(parts, "; "))
}
