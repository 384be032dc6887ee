// Package testutil provides shared fixtures for tests: pointer
// helpers and realistic sample payloads resembling what the browser
// collector actually submits.
package testutil
