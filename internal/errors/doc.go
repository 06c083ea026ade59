// Package errors provides coded, structured errors for the routing and
// session-synchronization core.
//
// Every failure the core can surface to a host application carries a stable
// code (e.g., "E100") that maps to:
//   - A category (routing, dispatch, query, stream, config)
//   - A short message describing the error
//   - A longer explanation
//
// # Error Categories
//
//   - routing: no route matched, entry not ready
//   - dispatch: an event, write or set referenced an unregistered key
//   - query: a data fetch or mutation failed
//   - stream: the server-push event connection failed
//   - config: appsync.json could not be read or is invalid
//
// # Usage
//
//	err := errors.New(errors.CodeRouteNotFound).
//	    WithSubject("/datasets/missing/extra").
//	    WithSuggestion("Check the route table passed to router.New")
//
//	if errors.HasCode(err, errors.CodeRouteNotFound) {
//	    // render the not-found view
//	}
//
//	fmt.Println(err.Format())
package errors
