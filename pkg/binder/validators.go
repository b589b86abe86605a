package binder

import (
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/shelfwise/circulation/pkg/models"
)

var dateRE = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)

// dateValidator accepts YYYY-MM-DD or the empty string, so it can be used on
// optional filters. Pair it with `required` when the date must be set.
func dateValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || dateRE.MatchString(value)
}

func genreValidator(fl validator.FieldLevel) bool {
	return slices.Contains(models.Genres, fl.Field().String())
}
