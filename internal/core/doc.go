/*
Package core implements the entity-agnostic record operations.

# Architecture

Entities are plain structs described by a Schema built from struct tags.
Entity packages register an EntityInfo during init and construct a
Definition carrying their validation rules:

	var Books = core.Definition[Book]{
	    Info:  core.EntityInfo{Key: "books", Labels: ..., Schema: core.SchemaFor[Book]("books")},
	    Rules: []core.Rule[Book]{...},
	}

A Service[T] combines a Definition with a Store[T] and exposes every
operation through the Response envelope.

# Filtering

NewFilter resolves a request-time column name against the schema. Only
string attributes are filterable; anything else silently yields the identity
filter. A Filter evaluates in process via Match and renders a pushdown
condition via SQL; both give the same result.

# Batches

Ingestor validates candidates in order (required fields and rules, then
duplicates against the store, then duplicates within the batch) and
persists accepted records with one bulk insert. BatchPolicy selects between
stopping at the first rejection and collecting all of them, and whether any
rejection blocks the insert.

# Ranges

RangeMutator deletes or updates an inclusive id range only when every id in
it exists, and otherwise reports the complete list of missing ids.

# Error Handling

Failures are *Error values classified by Kind. MapError maps them to
support codes. Store implementations translate driver faults so nothing
unclassified reaches a Response.
*/
package core
