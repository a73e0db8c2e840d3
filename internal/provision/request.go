package provision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ksyq12/provision/internal/errors"
)

// Request is an accepted provisioning request. It is not modified once
// validated.
type Request struct {
	Domain      string `json:"domain" validate:"required,fqdn"`
	Email       string `json:"email" validate:"required,email"`
	AppPort     int    `json:"app_port" validate:"min=1,max=65535"`
	ProjectName string `json:"project_name" validate:"required,project"`
}

var (
	validate           = newValidator()
	projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("project", func(fl validator.FieldLevel) bool {
		return projectNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ParseArgs builds a Request from the two positional arguments. Any other
// argument count is rejected before anything else happens.
func ParseArgs(args []string, appPort int, projectName string) (Request, error) {
	if len(args) != 2 {
		return Request{}, errors.InvalidArguments(
			fmt.Sprintf("expected 2 arguments (domain, email), got %d", len(args)))
	}
	req := Request{
		Domain:      strings.TrimSuffix(strings.ToLower(strings.TrimSpace(args[0])), "."),
		Email:       strings.TrimSpace(args[1]),
		AppPort:     appPort,
		ProjectName: projectName,
	}
	return req, req.Validate()
}

// Validate checks every field and reports all problems at once.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.InvalidArguments(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.InvalidArguments(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Domain":
		return fmt.Sprintf("invalid domain %q", fe.Value())
	case "Email":
		return fmt.Sprintf("invalid email %q", fe.Value())
	case "AppPort":
		return fmt.Sprintf("app port must be between 1 and 65535, got %v", fe.Value())
	case "ProjectName":
		return fmt.Sprintf("invalid project name %q: use letters, digits, '_' or '-'", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
