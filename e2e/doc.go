//go:build e2e

// Package e2e runs the feature files against the conference server in a
// real browser.
//
// These tests are isolated from the standard test suite via build tags.
// They need Chrome (Rod downloads Chromium when none is installed).
//
//	go test -tags=e2e ./e2e/...
//
// Each test starts its own conference server on a random port and its own
// browser, so tests can run in parallel.
package e2e
