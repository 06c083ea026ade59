// Package router resolves history locations to navigation entries.
//
// A Route pairs a path pattern with a lazily loaded component and query.
// Match turns a location into query variables; the Router drives Match on
// every history change, preloads the route's query through a
// gql.Environment, and publishes the resolved Entry to subscribers.
//
// # Navigation
//
// Each history event builds a new entry resource unless the target location
// can reuse the current data (see ReusePolicy). Builds start in history
// order, each after the current entry has resolved, but they may complete
// out of order: only the attempt still referenced as the router's next
// entry is committed. A commit runs every subscriber in registration order,
// then makes the new entry current, then releases the previous entry.
//
// # Proxies
//
// When the app is served below a reverse-proxy prefix, the prefix arrives
// in the "proxy" query parameter and is stripped before matching. Use
// Router.URL to build paths that keep the prefix.
package router
