// Package fetch is the HTTP client used for thread pages and images.
//
// Every request carries a browser User-Agent and a per-request timeout.
// Timeouts and connection failures are retried with exponential backoff;
// non-2xx responses are returned immediately as http_status errors because
// the content is missing or blocked.
package fetch
