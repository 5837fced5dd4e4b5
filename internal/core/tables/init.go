// Package tables defines the record types served by the application and
// registers them with the core registry. Import this package (or reference
// one of its definitions) to ensure all entities are registered.
package tables

import "github.com/JonMunkholm/bookshelf/internal/core"

func init() {
	core.Register(Books.Info)
	core.Register(Authors.Info)
	core.Register(Currencies.Info)
	core.Register(Languages.Info)
}
