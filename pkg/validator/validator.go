package validator

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator"
)

var (
	global     *validator.Validate
	phoneRegex = regexp.MustCompile(`^0\d{9}$`)
	digitRegex = regexp.MustCompile(`\D`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

var eventStatuses = map[string]bool{
	"scheduled": true, "open": true, "confirmed": true, "full": true,
	"pending": true, "closed": true, "cancelled": true, "postponed": true,
}

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("thaiphone", validateThaiPhone)
	_ = v.RegisterValidation("foodtype", validateFoodType)
	_ = v.RegisterValidation("eventstatus", validateEventStatus)
	_ = v.RegisterValidation("future", validateFutureDate)
	_ = v.RegisterValidation("positive", validatePositiveInt)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

// NormalizePhone strips everything but digits: "081 234 5678" -> "0812345678".
func NormalizePhone(raw string) string {
	return digitRegex.ReplaceAllString(raw, "")
}

// IsThaiMobile reports whether the already-normalized phone matches the Thai
// mobile format 0XXXXXXXXX.
func IsThaiMobile(normalized string) bool {
	return phoneRegex.MatchString(normalized)
}

func validateThaiPhone(fl validator.FieldLevel) bool {
	return IsThaiMobile(NormalizePhone(fl.Field().String()))
}

func validateFoodType(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return v == "normal" || v == "islam"
}

func validateEventStatus(fl validator.FieldLevel) bool {
	return eventStatuses[fl.Field().String()]
}

func validateFutureDate(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && t.After(time.Now())
}

func validatePositiveInt(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(int)
	return ok && val > 0
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "email":
		msg = ErrInvalidFormat
	case "thaiphone":
		msg = "Phone must be a Thai mobile number (0XXXXXXXXX)"
	case "foodtype":
		msg = "Food type must be normal or islam"
	case "eventstatus":
		msg = "Unknown event status"
	case "future":
		msg = "Date must be in the future"
	case "positive":
		msg = "Value must be positive"
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
