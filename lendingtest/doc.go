// Package lendingtest provides in-memory implementations of the lending
// repository contracts plus small fixture helpers, so engine and service
// behavior can be tested without a database.
package lendingtest
