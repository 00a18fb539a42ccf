// Package testsupport provides fixtures shared across the pipeline's
// package tests: a deterministic subtitle generator and a scripted
// fake LLM endpoint.
package testsupport

import "fmt"

// NewFixtureSRT builds a valid n-entry SRT document, one second per
// line, numbered "Line 1", "Line 2", ... so tests can assert on
// specific narration content when they need to.
func NewFixtureSRT(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		startSec := i - 1
		endSec := i
		out += fmt.Sprintf("%d\n00:00:%02d,000 --> 00:00:%02d,000\nLine %d\n\n", i, startSec, endSec, i)
	}
	return out
}
