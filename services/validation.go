package services

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Field rules shared by the services.
const (
	ruleContent     = "required,min=8,max=255"
	ruleMessage     = "required,min=1,max=1000"
	ruleGroupText   = "required,min=4,max=255"
	ruleUsername    = "required,min=4,max=16,alphanum"
	ruleEmail       = "required,email,max=128"
	rulePassword    = "required,min=8,max=128"
	ruleDisplayName = "omitempty,max=64"
	ruleShortText   = "omitempty,max=255"
	ruleGender      = "omitempty,oneof=male female other"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// checkField validates a single value and reports the first failing rule.
func checkField(field string, value interface{}, rules string) error {
	err := getValidator().Var(value, rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return &ValidationError{Field: field, Rule: rule}
	}
	return &ValidationError{Field: field, Rule: strings.TrimSpace(err.Error())}
}

// checkFields runs checks in order and returns the first failure.
func checkFields(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
