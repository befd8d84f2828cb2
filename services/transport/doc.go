// Package transport performs outbound provider calls with bounded retries.
//
// A Policy decides how many attempts a logical request gets, how long each
// attempt may take, which failures are worth retrying and how long to wait
// between attempts. Client applies a Policy to HTTP requests; Policy.Do can
// wrap any other call path (for example an SDK client) with the same rules.
//
// Retry rules:
//   - no HTTP status (network failure), 5xx and 429 are retried
//   - any other 4xx aborts immediately
//   - the delay before attempt i (i >= 1) is 300ms * 2^(i-1)
//   - the last error is always returned to the caller
package transport
