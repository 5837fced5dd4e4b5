package tables

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

// Author is identified by email address.
type Author struct {
	ID    int64  `json:"id" db:"id" pk:"true"`
	Name  string `json:"name" db:"name" required:"true"`
	Email string `json:"email" db:"email" required:"true" unique:"true"`
}

var emailRegex = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

// Authors is the author entity definition.
var Authors = core.Definition[Author]{
	Info: core.EntityInfo{
		Key:    "authors",
		Labels: core.Labels{Singular: "author", Plural: "authors"},
		Schema: core.SchemaFor[Author]("authors"),
	},
	Rules: []core.Rule[Author]{validEmail},
}

func validEmail(a *Author) error {
	email := strings.TrimSpace(a.Email)
	if !emailRegex.MatchString(email) {
		return &core.FieldError{
			Field:   "email",
			Value:   a.Email,
			Message: fmt.Sprintf("Invalid email format for author '%s'.", a.Name),
		}
	}
	return nil
}
