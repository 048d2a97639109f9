// Package types defines the transport-independent values exchanged by the
// convoy pipeline: the Request a caller issues, the Response a plugin or the
// terminal handler produces, and the cache metadata attached to stored responses.
//
// Requests are treated as immutable. Plugins that need to change a request build
// a modified copy with the With* helpers and forward that copy downstream.
//
// Responses describe successful and failed exchanges uniformly. An HTTP error
// outcome is a Response with an error-range status, and a connectivity failure
// is a Response with status 0. Because *Response implements error, such outcomes
// travel a stream's error channel without introducing a separate error type.
package types
