package tables

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

func TestRegistered(t *testing.T) {
	for _, key := range []string{"authors", "books", "currencies", "languages"} {
		info, ok := core.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, key, info.Schema.Table)
	}
}

func TestSchemas(t *testing.T) {
	s := Books.Info.Schema

	key, ok := s.Key()
	require.True(t, ok)
	assert.Equal(t, "title", key.Column)

	_, ok = s.Resolve("Title")
	assert.True(t, ok)
	_, ok = s.Resolve("description")
	assert.True(t, ok)
	_, ok = s.Resolve("numberOfPages")
	assert.False(t, ok)

	created, ok := s.Lookup("created_on")
	require.True(t, ok)
	assert.False(t, created.Writable())

	authorKey, ok := Authors.Info.Schema.Key()
	require.True(t, ok)
	assert.Equal(t, "email", authorKey.Column)
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"ada@example.com", true},
		{"first.last-x@mail.example.org", true},
		{" ada@example.com ", true},
		{"ada@example", false},
		{"ada.example.com", false},
		{"ada@example.toolong", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := validEmail(&Author{Name: "Ada", Email: tt.email})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var fe *core.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "email", fe.Field)
			assert.Equal(t, "Invalid email format for author 'Ada'.", fe.Message)
		})
	}
}

func TestBookRules(t *testing.T) {
	neg := int64(-1)
	assert.Error(t, validPageCount(&Book{Title: "x", NumberOfPages: -5}))
	assert.NoError(t, validPageCount(&Book{Title: "x", NumberOfPages: 0}))
	assert.Error(t, validReferences(&Book{Title: "x", LanguageID: &neg}))
	assert.Error(t, validReferences(&Book{Title: "x", AuthorID: &neg}))
	assert.NoError(t, validReferences(&Book{Title: "x"}))
}

func TestAuthorBatchValidation(t *testing.T) {
	v := core.NewBatchValidator(Authors.Info.Schema, Authors.Info.Labels, nil, Authors.Rules...)
	val, err := v.Validate(context.Background(), []*Author{
		{Name: "Ada", Email: "ada@example.com"},
		{Name: "Bad", Email: "nope"},
		{Name: "Dup", Email: "ADA@example.com"},
	}, nil, core.BatchPolicy{})
	require.NoError(t, err)

	require.Len(t, val.Accepted, 1)
	require.Len(t, val.Rejections, 2)
	assert.Equal(t, core.KindInvalidField, val.Rejections[0].Kind)
	assert.Equal(t, core.KindDuplicateInBatch, val.Rejections[1].Kind)
}

func TestSeeds(t *testing.T) {
	assert.Len(t, SeedCurrencies(), 10)
	assert.Len(t, SeedLanguages(), 10)
	keys := core.NewKeySet(nil)
	for _, c := range SeedCurrencies() {
		assert.False(t, keys.Has(c.Title))
		keys.Add(c.Title)
	}
}

func TestWithAuthorInlinesBook(t *testing.T) {
	id := int64(3)
	b := &Book{ID: 7, Title: "Notes", AuthorID: &id}

	raw, err := json.Marshal(WithAuthor(b, &Author{ID: 3, Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Notes", got["title"])
	assert.Equal(t, float64(3), got["authorId"])
	assert.Equal(t, "Ada", got["author"].(map[string]any)["name"])

	raw, err = json.Marshal(WithAuthor(&Book{ID: 8, Title: "Anon"}, nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"author":null`)
}
