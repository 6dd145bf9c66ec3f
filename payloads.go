package auth

import (
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 6
	minAge            = 1
	maxAge            = 120
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks credentials before they are sent.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// Registration is the data collected by a sign up form. Name and Nombre are
// synonyms; Payload offers Name under both when only Name is given.
type Registration struct {
	Name     string
	Nombre   string
	Email    string
	Password string
	Age      *int
	Extra    map[string]any
}

// Validate checks registration data before it is sent.
func (r Registration) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&r.Age, validation.NilOrNotEmpty, validation.Min(minAge), validation.Max(maxAge)),
	); err != nil {
		return err
	}
	if firstNonEmpty(r.Name, r.Nombre) == "" {
		return validation.Errors{"name": errors.New("cannot be blank")}
	}
	return nil
}

// Payload builds the request body sent to the register endpoint.
func (r Registration) Payload() map[string]any {
	payload := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		payload[k] = v
	}

	name := strings.TrimSpace(r.Name)
	nombre := strings.TrimSpace(r.Nombre)
	if nombre == "" {
		nombre = name
	}
	if name != "" {
		payload["name"] = name
	}
	if nombre != "" {
		payload["nombre"] = nombre
	}

	payload["email"] = strings.TrimSpace(r.Email)
	payload["password"] = r.Password
	if r.Age != nil {
		payload["edad"] = *r.Age
	}
	return payload
}

// AuthResponse is the decoded answer of the login and register endpoints.
type AuthResponse struct {
	StatusCode int
	Token      string
	User       map[string]any
	Message    string
}

// IsSuccess reports a 2xx status.
func (r *AuthResponse) IsSuccess() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// HasToken reports whether a non-empty token was returned.
func (r *AuthResponse) HasToken() bool {
	return r != nil && strings.TrimSpace(r.Token) != ""
}

func invalidInput(err error) error {
	return withMessage(ErrInvalidInput, err, ErrInvalidInput.Message+": "+err.Error(),
		map[string]any{"fields": err.Error()})
}
