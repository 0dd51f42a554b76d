package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateModality(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "fingerprint", "face", "palmprint":
		return true
	}
	return false
}

func validateUnitInterval(fl validator.FieldLevel) bool {
	value := fl.Field().Float()
	return value >= 0 && value <= 1
}

func validateStruct(payload interface{}) *[]error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	errMessages := []error{}
	for _, err := range err.(validator.ValidationErrors) {
		errMessages = append(errMessages, fmt.Errorf("%s failed validation for rule %s", err.Field(), err.Tag()))
	}
	return &errMessages
}

func validateField(value any, rules string) error {
	return validate.Var(value, rules)
}
