package core

import (
	"context"
	"fmt"
)

// Expansion lists parent records together with the record each one's
// foreign key points at. The referenced records are loaded with a single
// FindByIDs call per listing, whatever the number of parents.
type Expansion[P, C any] struct {
	name   string
	parent *Service[P]
	child  *Service[C]
	fk     Attribute
	join   func(*P, *C) any
}

// NewExpansion relates parent to child through the integer column fk.
// join builds the listed item; its child argument is nil when the key is
// unset or dangling. It panics if fk is not an integer column of parent.
func NewExpansion[P, C any](name string, parent *Service[P], fk string, child *Service[C], join func(*P, *C) any) *Expansion[P, C] {
	attr, ok := parent.def.Info.Schema.Lookup(fk)
	if !ok || attr.Kind != KindInt {
		panic(fmt.Sprintf("core: %s has no integer column %q", parent.def.Info.Key, fk))
	}
	return &Expansion[P, C]{name: name, parent: parent, child: child, fk: attr, join: join}
}

// Name is the related entity as it appears in routes and logs.
func (x *Expansion[P, C]) Name() string { return x.name }

// List filters the parents like Service.List and attaches the related
// record to each.
func (x *Expansion[P, C]) List(ctx context.Context, column, keyword string) Response {
	op := "list with " + x.name
	parents, err := x.parent.store.Find(ctx, NewFilter[P](x.parent.def.Info.Schema, column, keyword))
	if err != nil {
		return x.parent.fail(ctx, op, nil, err)
	}

	byID := map[int64]*C{}
	if ids := x.foreignIDs(parents); len(ids) > 0 {
		related, err := x.child.store.FindByIDs(ctx, ids)
		if err != nil {
			return x.parent.fail(ctx, op, nil, err)
		}
		for _, c := range related {
			byID[x.child.def.Info.Schema.ID(c)] = c
		}
	}

	out := make([]any, len(parents))
	for i, p := range parents {
		var c *C
		if id, ok := x.fk.Value(p).(int64); ok {
			c = byID[id]
		}
		out[i] = x.join(p, c)
	}
	return Success(out, fmt.Sprintf("%d %s found.", len(out), x.parent.labels().Plural))
}

// foreignIDs returns the distinct set keys of parents in first-seen order.
func (x *Expansion[P, C]) foreignIDs(parents []*P) []int64 {
	seen := make(map[int64]bool, len(parents))
	var ids []int64
	for _, p := range parents {
		id, ok := x.fk.Value(p).(int64)
		if !ok || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
