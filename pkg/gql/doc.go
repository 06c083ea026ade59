// Package gql is the data-fetching collaborator of the router and the
// session synchronizer.
//
// An Environment fetches queries (returning an Operation handle that the
// router keeps as an entry's preloaded query) and commits mutations
// (fire-and-forget, with completion callbacks). Client is the HTTP
// implementation: it speaks GraphQL over POST and keeps fetched query
// responses in a TTL-bounded LRU Store so that "store-or-network" fetches
// can be answered without a round trip.
package gql
