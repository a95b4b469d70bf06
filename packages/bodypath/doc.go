// Package bodypath resolves path expressions against JSON response bodies.
//
// A path is a sequence of dot-separated field names and bracketed array
// indexes:
//
//	data.id
//	[0].email
//	items[2].tags[0]
//
// The empty path and "$" address the whole document. Every lookup either
// yields a value that is present in the body or fails with an
// *ExtractionError naming why the path did not resolve. A missing field is
// never reported as null.
package bodypath
