// Package catalog persists podcasts, episodes and the trending list in a
// relational database.
//
// Two dialects share one code path: SQLite (the default, a file under the data
// directory) and PostgreSQL through the pgx stdlib driver. Queries are written
// with ? placeholders and rebound per dialect. Schema changes are goose
// migrations embedded per dialect and applied on Open.
package catalog
