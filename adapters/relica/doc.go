// Package relica provides the production MessageStore implementation backed
// by a relational database via the Relica query builder.
//
// Supports MySQL, PostgreSQL, and SQLite through database/sql drivers. Apply
// the embedded migrations from the teamchat root package before first use.
package relica
