package contact

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ServiceType is the kind of help a visitor asks for.
// The zero value means no option was picked.
type ServiceType string

const (
	ServiceUnset              ServiceType = ""
	ServiceTowing             ServiceType = "towing"
	ServiceRoadsideAssistance ServiceType = "roadside-assistance"
	ServiceVehicleRecovery    ServiceType = "vehicle-recovery"
	ServiceOther              ServiceType = "other"
)

// ServiceOption pairs a service type with its display label.
type ServiceOption struct {
	Value ServiceType
	Label string
}

var serviceOptions = []ServiceOption{
	{Value: ServiceTowing, Label: "Vuča"},
	{Value: ServiceRoadsideAssistance, Label: "Pomoć na cesti"},
	{Value: ServiceVehicleRecovery, Label: "Izvlačenje vozila"},
	{Value: ServiceOther, Label: "Ostalo"},
}

// ServiceTypes returns the selectable service types in display order.
func ServiceTypes() []ServiceOption {
	out := make([]ServiceOption, len(serviceOptions))
	copy(out, serviceOptions)
	return out
}

// ParseServiceType accepts one of the four option values or "" for unset.
func ParseServiceType(s string) (ServiceType, error) {
	st := ServiceType(s)
	if st == ServiceUnset {
		return st, nil
	}
	for _, o := range serviceOptions {
		if o.Value == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownServiceType, s)
}

// Field names as they appear in form posts and API paths.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldServiceType = "serviceType"
	FieldMessage     = "message"
)

// FieldNames lists every field in form order.
var FieldNames = []string{FieldName, FieldEmail, FieldPhone, FieldServiceType, FieldMessage}

// Fields is the record a visitor fills in. The validate tags mirror the
// required and type=email attributes on the rendered inputs.
type Fields struct {
	Name        string      `json:"name" validate:"required"`
	Email       string      `json:"email" validate:"required,html_email"`
	Phone       string      `json:"phone" validate:"required"`
	ServiceType ServiceType `json:"serviceType" validate:"omitempty,oneof=towing roadside-assistance vehicle-recovery other"`
	Message     string      `json:"message" validate:"required"`
}

// IsZero reports whether every field is empty.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

// Get returns the value of the named field.
func (f Fields) Get(name string) (string, error) {
	switch name {
	case FieldName:
		return f.Name, nil
	case FieldEmail:
		return f.Email, nil
	case FieldPhone:
		return f.Phone, nil
	case FieldServiceType:
		return string(f.ServiceType), nil
	case FieldMessage:
		return f.Message, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// TemplateParams maps the record onto the relay template variables.
func (f Fields) TemplateParams() map[string]any {
	return map[string]any{
		"from_name":    f.Name,
		"from_email":   SanitizeEmail(f.Email),
		"from_phone":   f.Phone,
		"service_type": string(f.ServiceType),
		"message":      f.Message,
	}
}

// Change sets one named field to a new value.
type Change struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Reduce applies a single change and returns the new record. Only the
// named field differs between f and the result.
func Reduce(f Fields, c Change) (Fields, error) {
	switch c.Field {
	case FieldName:
		f.Name = c.Value
	case FieldEmail:
		f.Email = c.Value
	case FieldPhone:
		f.Phone = c.Value
	case FieldServiceType:
		st, err := ParseServiceType(c.Value)
		if err != nil {
			return f, err
		}
		f.ServiceType = st
	case FieldMessage:
		f.Message = c.Value
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}
	return f, nil
}

// FieldError is one failing constraint.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationErrors lists every field that blocked a submission.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Field + ": " + e.Rule
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// Has reports whether field failed any rule.
func (ve ValidationErrors) Has(field string) bool {
	for _, e := range ve {
		if e.Field == field {
			return true
		}
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// htmlEmailRE is the valid e-mail address grammar of <input type=email>.
var htmlEmailRE = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@" +
	"[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?" +
	"(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// SanitizeEmail drops line breaks and trims surrounding ASCII whitespace,
// as a browser does with an email input's value.
func SanitizeEmail(s string) string {
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	return strings.Trim(s, " \t\n\f\r")
}

// IsHTMLEmail reports whether s is an address an email input accepts.
func IsHTMLEmail(s string) bool {
	return htmlEmailRE.MatchString(SanitizeEmail(s))
}

func init() {
	validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		return name
	})
	if err := validate.RegisterValidation("html_email", func(fl validator.FieldLevel) bool {
		return IsHTMLEmail(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// Validate checks the record the way the browser does before it lets the
// form submit. It returns ValidationErrors when anything is missing.
func (f Fields) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate fields: %w", err)
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
