// Package workflow runs ordered request/response steps that share one
// capture context.
//
// Each step may read any value captured by a strictly earlier step. A
// reference to a value that only a later step captures, or that nothing
// captures, is rejected by Validate before any request is sent. At run time
// a step either completes (its response verified and every capture bound)
// or fails as a whole; the workflow stops at the first failing step.
package workflow
