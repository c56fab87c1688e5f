// Package testutil provides deterministic helpers shared by package tests:
// fixed run IDs and row file fixtures.
package testutil
