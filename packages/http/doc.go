// Package http is the transport contractkit sends specifications through.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Basic, bearer, API key, digest and AWS Signature v4 authentication
//   - Multipart form data support
//   - Response capture with elapsed time
//   - curl rendering of a request for reproducing failures
//
// Network failures are returned as *TransportError. The client never retries.
package http
