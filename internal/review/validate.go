package review

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateResult checks a ReviewResult before it is posted. Nil collections are a
// validation failure: a result must say "no violations", not omit the field.
func ValidateResult(r *core.ReviewResult) error {
	if r == nil {
		return core.NewError(core.KindValidation, "review result is missing", nil)
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.NewError(core.KindValidation, "invalid review result", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
	}
	return core.NewError(core.KindValidation, "invalid review result: "+strings.Join(fields, ", "), err).
		WithDetail("fields", fields)
}
