package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// fieldErrors maps a request field to its validation messages, mirroring the
// error body REST clients of the API expect: {"name": ["This field is required."]}.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

const (
	maxPriceDigits   = 5
	maxPriceDecimals = 2
)

// requestValidate checks decoded request bodies. Field names in errors come
// from the json tags so they match the wire format.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New(validator.WithRequiredStructEnabled())
	requestValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = requestValidate.RegisterValidation("notblank", validators.NotBlank)
	_ = requestValidate.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		return priceProblem(fl.Field().String()) == ""
	})
}

// decimalString holds a decimal value exactly as the client sent it, accepting
// both JSON numbers and numeric strings.
type decimalString string

func (d *decimalString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	*d = decimalString(raw)
	return nil
}

// priceProblem returns the message describing why value is not an acceptable
// price, or "" when it is.
func priceProblem(value string) string {
	if !isPlainDecimal(value) {
		return "A valid number is required."
	}
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return "A valid number is required."
	}
	whole, frac, _ := strings.Cut(strings.TrimLeft(value, "+-"), ".")
	whole = strings.TrimLeft(whole, "0")
	switch {
	case len(whole)+len(frac) > maxPriceDigits:
		return fmt.Sprintf("Ensure that there are no more than %d digits in total.", maxPriceDigits)
	case len(frac) > maxPriceDecimals:
		return fmt.Sprintf("Ensure that there are no more than %d decimal places.", maxPriceDecimals)
	case len(whole) > maxPriceDigits-maxPriceDecimals:
		return fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", maxPriceDigits-maxPriceDecimals)
	case rat.Sign() < 0:
		return "Ensure this value is greater than or equal to 0."
	}
	return ""
}

func isPlainDecimal(value string) bool {
	value = strings.TrimPrefix(strings.TrimPrefix(value, "-"), "+")
	digits, dots := 0, 0
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func parsePrice(value decimalString) float64 {
	rat, ok := new(big.Rat).SetString(string(value))
	if !ok {
		return 0
	}
	f, _ := rat.Float64()
	return f
}

// validateRequest runs the struct validator and translates its failures.
func validateRequest(req any) fieldErrors {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors{"non_field_errors": {err.Error()}}
	}
	errs := fieldErrors{}
	for _, fe := range validationErrs {
		errs.add(fe.Field(), validationMessage(fe))
	}
	return errs
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "email":
		return "Enter a valid email address."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "price":
		if msg := priceProblem(fmt.Sprint(fe.Value())); msg != "" {
			return msg
		}
		return "A valid number is required."
	default:
		return "Invalid value."
	}
}
