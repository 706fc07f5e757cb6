// Package simplepublish manages published content items (articles, books and
// products) whose metadata lives in a relational store while their cover image
// and PDF document live in an object store.
//
// The Service orchestrates the two independently failing systems. Every
// mutating operation records the external writes it has committed and, when a
// later step fails, unwinds them in reverse order before returning the
// original error. Repositories (memory, Postgres, SQLite) and blob stores
// (memory, filesystem, S3) are provided under subpackages.
//
// Consistency model
//
// A record never references an object that has been deleted. The opposite
// (an object without a record) is tolerated as a rare, logged side effect of
// a crash between a record delete and the object deletes that follow it.
package simplepublish
