// Package ratelimit provides the optional token bucket shared by every
// worker when rate_limit.requests_per_minute is set. A nil Limiter means
// requests are not paced.
package ratelimit
