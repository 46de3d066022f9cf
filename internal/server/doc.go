// Package server provides HTTP routing, middleware, the JSON match API and OAuth handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so handlers read path
// parameters with [http.Request.PathValue].
//
// # Caller Identity
//
// Sessions are issued by an upstream gateway. [Identify] reads the caller from the
// [UserHeader] header and [RequireUser] rejects anonymous requests with 401.
//
// # Match API
//
// [API] exposes today's match, history, the reveal flow, blocking, reporting, chat,
// location updates and profile sync as JSON. Error kinds map to statuses through
// [StatusFor]: validation 400, not found 404, not a party 403, conflicts 409.
//
// # OAuth Handlers
//
// [OAuthHandler] serves one callback for the CLI flow: a temporary server on
// localhost receives the code, exchanges it and hands the token back on a channel.
//
// [ConnectHandler] serves the same callback for the long-running server and stores the
// token for the user who started the flow.
package server
