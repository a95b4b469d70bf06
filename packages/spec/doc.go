// Package spec models reusable descriptions of how to call an API and what a
// correct response looks like.
//
// A RequestSpec carries a base URL, headers, content negotiation, cookies,
// query and path parameters and credentials. Specs are values: options
// build them, Merge combines them, and neither ever mutates its inputs.
//
//	base := spec.NewRequest(
//		spec.WithBaseURL("https://jsonplaceholder.typicode.com"),
//		spec.WithAccept("application/json"),
//	)
//	authed := spec.Merge(base, spec.NewRequest(spec.WithAuth(auth)))
//	req, err := authed.Build("GET", "/users/{id}", "")
//
// A ResponseSpec lists acceptable statuses, a latency ceiling, a content
// type, header expectations and body assertions. Verify checks all of them
// against one response and reports every failure, not only the first.
package spec
