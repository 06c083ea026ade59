// Package synchronizer keeps the local session in step with the backend
// session process.
//
// A Synchronizer has three duties:
//
//   - Inbound: it holds the server-push event stream open and dispatches
//     each event to the handler registered under the event's name.
//   - Outbound: it observes UI writes to the session store and dispatches
//     each to the writer registered for the written field; explicit Set
//     calls go to setters the same way.
//   - Back/forward: when the router commits a POP navigation it compares
//     the new entry with the state last synchronized with the server and
//     sends only the mutations needed to catch the server up.
//
// Dispatch is by exact name. A name with no registered handler is a
// programming error and fails immediately.
//
// The synchronizer moves through Connecting, Open and Closed. Entering
// Closed resets the session so no state survives into the next connection.
package synchronizer
