// Package history models browser session history for the router.
//
// A History holds a stack of Locations and a cursor. Push and Replace are
// programmatic navigations; Back, Forward and Go move the cursor and are
// reported to listeners as ActionPop, the same way a browser reports its
// back and forward buttons.
//
// Every Location carries a State: the in-memory navigation state that the
// browser keeps alongside a URL (view stages, saved-view slug, modal
// selection, group slice, workspace layout) plus an Event tag describing
// why the navigation happened.
package history
