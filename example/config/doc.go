// Package config provides database configuration helpers for PostgreSQL
// connections for the example: borrowing and lending in a public library.
//
// This package contains factory functions for creating database connections
// using different PostgreSQL drivers (pgx.Pool, sql.DB, sqlx.DB) with a
// pre-configured library database DSN.
package config
