// Package policy holds the per-entity CRUD authorization rules. Every rule is
// a pure predicate over the acting user (nil means guest) and the target
// record; rules never touch the database and never mutate state. A denial is
// an access problem, not a missing record, and handlers must surface it as
// such.
package policy
