package users

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	NonFieldErrors = "non_field_errors"
	msgRequired    = "This field is required."
	msgEmail       = "Enter a valid email address."
	msgMismatch    = "Passwords do not match"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePasswordStrength(fl.Field().String()) == nil
	})
	return v
}

// check runs the struct tags of payload and maps each failure to the message
// the backend would give for it. overrides is keyed by "field.tag".
func check(payload any, overrides map[string]string) ValidationErrors {
	errs := ValidationErrors{}
	err := validate.Struct(payload)
	if err == nil {
		return errs
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add(NonFieldErrors, err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), fieldMessage(fe, overrides))
	}
	return errs
}

func fieldMessage(fe validator.FieldError, overrides map[string]string) string {
	if msg, ok := overrides[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required", "notblank":
		return msgRequired
	case "email":
		return msgEmail
	case "password":
		if err := ValidatePasswordStrength(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	}
	return "Invalid value."
}

// ValidationErrors holds per-field messages in the shape Django REST framework
// answers a 400 with.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

// Error returns the first message, fields taken in name order with
// non_field_errors first.
func (v ValidationErrors) Error() string {
	if msgs := v[NonFieldErrors]; len(msgs) > 0 {
		return msgs[0]
	}
	fields := make([]string, 0, len(v))
	for k := range v {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if len(v[k]) > 0 {
			return v[k][0]
		}
	}
	return "invalid input"
}

// Detail returns v in the shape of a decoded JSON error payload.
func (v ValidationErrors) Detail() map[string]any {
	detail := make(map[string]any, len(v))
	for field, msgs := range v {
		list := make([]any, len(msgs))
		for i, m := range msgs {
			list[i] = m
		}
		detail[field] = list
	}
	return detail
}

// Err returns v as an error, nil when it holds nothing.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Login is the body of users/login/. Login is a username or an email address.
type Login struct {
	Login    string `json:"login" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = map[string]string{"login.notblank": "Username or email is required"}

func (l Login) Validate() error {
	return check(l, loginMessages).Err()
}

// Registration is the body of users/register/.
type Registration struct {
	Username  string `json:"username" validate:"notblank"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (r Registration) Validate() error {
	errs := check(r, nil)
	if len(errs) == 0 && r.Password != r.Password2 {
		errs.Add(NonFieldErrors, msgMismatch)
	}
	return errs.Err()
}

// PasswordResetRequest is the body of users/password-reset/.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"notblank,email"`
}

func (p PasswordResetRequest) Validate() error {
	return check(p, nil).Err()
}

// PasswordResetConfirm is the body of users/password-reset-confirm/; UID and
// Token come from the emailed reset link.
type PasswordResetConfirm struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (p PasswordResetConfirm) Validate() error {
	errs := check(p, nil)
	if len(errs) == 0 && p.NewPassword != p.ConfirmPassword {
		errs.Add("confirm_password", msgMismatch)
	}
	return errs.Err()
}
