// Package sqlite implements the booking storage interfaces over a single
// SQLite database file with embedded migrations.
package sqlite
