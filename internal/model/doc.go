// Package model defines the core data structures shared by the fetch,
// planning and bulk layers.
//
// # Identifiers
//
// ID wraps a UUID and is used as the map key everywhere:
//
//	id := model.MustParseID("2c8e1d2e-35d4-4bd0-8a3c-5cbd6d3cfa01")
//	fmt.Println(id.Short()) // "5cbd6d3cfa01", display only
//
// NilID stands in as the parent of top-level "list everything" calls.
//
// # Kinds
//
// Kind enumerates the remote resource categories (Assignment, Test,
// Submission, Run, File, User, Reporter) along with their collection names
// and the kinds they are listed under.
//
// # Objects
//
// Object is the untyped attribute record returned by show calls. Accessors
// such as Owner, Assignment and CreatedTime only check for key presence and
// parse the value; they never validate the wider schema.
package model
