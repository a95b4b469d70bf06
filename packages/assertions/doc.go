// Package assertions evaluates predicates against values observed in an HTTP
// response.
//
// A subject names where the value comes from:
//   - status (expect status equals 200)
//   - duration in milliseconds (expect duration lt 3000)
//   - header <name> (expect header Content-Type contains json)
//   - body or body.<path> using the bodypath addressing scheme
//
// A subject that does not resolve fails with the extraction reason. Only the
// notExists operator treats an absent value as success.
package assertions
