// Package sqlite provides the SQLite-backed membership store.
//
// Instants are stored as UTC unix milliseconds; a NULL expiration means the
// membership never expires. Money columns hold decimal strings. Identifier
// lists on restrictions are JSON arrays.
package sqlite
