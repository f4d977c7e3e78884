// Package httpx provides a resilient HTTP client adapter for policies
// compiled by r8econf.
//
// Client wraps a standard http.Client with a compiled policy and a
// user-provided status code classifier that maps HTTP response codes to
// transient or permanent errors. Register makes the StatusError type
// available to configuration under the name "httpx.StatusError", so a
// policy can handle HTTP failures with:
//
//	handle:
//	  exceptionType: httpx.StatusError
package httpx
