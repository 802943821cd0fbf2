package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d!@#$%^&*]{8,15}$`)
	hasLetter       = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	hasSpecial      = regexp.MustCompile(`[!@#$%^&*]`)
	nicknamePattern = regexp.MustCompile(`^[가-힣a-zA-Z.,_@]+$`)
)

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Match(passwordCharset).Error("must be 8-15 letters, digits or !@#$%^&*"),
	validation.Match(hasLetter).Error("must contain a letter"),
	validation.Match(hasDigit).Error("must contain a digit"),
	validation.Match(hasSpecial).Error("must contain one of !@#$%^&*"),
}

var nicknameRules = []validation.Rule{
	validation.Required,
	validation.RuneLength(2, 16),
	validation.Match(nicknamePattern).Error("may only contain hangul, latin letters and .,_@"),
}

var emailRules = []validation.Rule{
	validation.Required,
	is.Email,
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	return fieldError("password", validation.Validate(password, passwordRules...))
}

// ValidateNickname checks the nickname format.
func ValidateNickname(nickname string) error {
	return fieldError("nickname", validation.Validate(strings.TrimSpace(nickname), nicknameRules...))
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	return fieldError("email", validation.Validate(strings.TrimSpace(email), emailRules...))
}

// Validate implements validation.Validatable.
func (r SignupRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.Nickname, nicknameRules...),
	)
	return fieldError("signup", err)
}

func fieldError(field string, err error) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for k, v := range errs {
			meta[k] = v.Error()
		}
	} else {
		meta[field] = err.Error()
	}
	return WithSource(ErrInvalidInput, err, meta)
}
