// Package capture extracts values from HTTP responses and holds them for
// later steps of a workflow.
//
// Values can be captured from:
//   - the response body, by bodypath expression (data.id, [0].email)
//   - a response header (header Location)
//   - the status code (status)
//   - the elapsed time in milliseconds (duration)
//
// A Context is created empty for each workflow run and is never shared
// between runs. Resolving a key that no earlier step bound fails with an
// *UnboundVariableError rather than yielding null.
package capture
