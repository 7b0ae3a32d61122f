package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared request validator. A validator.Validate caches struct
// metadata and is safe for concurrent use, so one instance serves all handlers.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validationMessage flattens validator errors into a single readable line for
// the error envelope.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
