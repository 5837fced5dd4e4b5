package tables

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

// Book is a catalog entry. Titles are unique ignoring case.
type Book struct {
	ID            int64     `json:"id" db:"id" pk:"true"`
	Title         string    `json:"title" db:"title" required:"true" unique:"true"`
	Description   *string   `json:"description" db:"description"`
	NumberOfPages int64     `json:"numberOfPages" db:"number_of_pages"`
	IsActive      bool      `json:"isActive" db:"is_active"`
	CreatedOn     time.Time `json:"createdOn" db:"created_on" readonly:"true"`
	LanguageID    *int64    `json:"languageId" db:"language_id"`
	AuthorID      *int64    `json:"authorId" db:"author_id"`
}

// BookWithAuthor is a book listed with its author inlined. Author is null
// when the book has none.
type BookWithAuthor struct {
	Book
	Author *Author `json:"author"`
}

// WithAuthor joins a book to its author for eager listings.
func WithAuthor(b *Book, a *Author) any {
	return &BookWithAuthor{Book: *b, Author: a}
}

// Books is the book entity definition.
var Books = core.Definition[Book]{
	Info: core.EntityInfo{
		Key:    "books",
		Labels: core.Labels{Singular: "book", Plural: "books"},
		Schema: core.SchemaFor[Book]("books"),
	},
	Rules: []core.Rule[Book]{validPageCount, validReferences},
}

func validPageCount(b *Book) error {
	if b.NumberOfPages < 0 {
		return &core.FieldError{
			Field:   "number_of_pages",
			Value:   fmt.Sprint(b.NumberOfPages),
			Message: fmt.Sprintf("Book '%s' has a negative page count.", b.Title),
		}
	}
	return nil
}

func validReferences(b *Book) error {
	if b.LanguageID != nil && *b.LanguageID <= 0 {
		return &core.FieldError{
			Field:   "language_id",
			Value:   fmt.Sprint(*b.LanguageID),
			Message: fmt.Sprintf("Book '%s' has an invalid language ID.", b.Title),
		}
	}
	if b.AuthorID != nil && *b.AuthorID <= 0 {
		return &core.FieldError{
			Field:   "author_id",
			Value:   fmt.Sprint(*b.AuthorID),
			Message: fmt.Sprintf("Book '%s' has an invalid author ID.", b.Title),
		}
	}
	return nil
}
