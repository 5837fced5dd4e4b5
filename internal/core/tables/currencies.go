package tables

import "github.com/JonMunkholm/bookshelf/internal/core"

// Currency is a price currency such as USD.
type Currency struct {
	ID          int64   `json:"id" db:"id" pk:"true"`
	Title       string  `json:"title" db:"title" required:"true" unique:"true"`
	Description *string `json:"description" db:"description"`
}

// Currencies is the currency entity definition.
var Currencies = core.Definition[Currency]{
	Info: core.EntityInfo{
		Key:    "currencies",
		Labels: core.Labels{Singular: "currency", Plural: "currencies"},
		Schema: core.SchemaFor[Currency]("currencies"),
	},
}

// Language is the language a book is written in.
type Language struct {
	ID          int64   `json:"id" db:"id" pk:"true"`
	Title       string  `json:"title" db:"title" required:"true" unique:"true"`
	Description *string `json:"description" db:"description"`
}

// Languages is the language entity definition.
var Languages = core.Definition[Language]{
	Info: core.EntityInfo{
		Key:    "languages",
		Labels: core.Labels{Singular: "language", Plural: "languages"},
		Schema: core.SchemaFor[Language]("languages"),
	},
}
