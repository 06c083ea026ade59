package router

import (
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/resource"
)

// Component is the UI entry point of a route. Rendering is done elsewhere;
// the router only resolves which component a location shows.
type Component struct {
	Name string
}

// Route is a static route definition.
type Route struct {
	// Path is the pattern (e.g., "/datasets/:name"). Segments starting with
	// ":" are parameters, a final "*name" segment captures the rest.
	Path string

	// Component resolves the route's UI entry point.
	Component *resource.Resource[Component]

	// Query resolves the page query. A nil Query means the route fetches
	// nothing.
	Query *resource.Resource[*gql.Request]

	// SearchParams maps query-string keys to variable names.
	SearchParams map[string]string

	// DefaultParams seed the variables beneath location state.
	DefaultParams gql.Variables

	// Children are tried after this route, in order.
	Children []*Route

	// Transform, when set, produces the final variables from the location
	// state and the merged variables.
	Transform func(state history.State, vars gql.Variables) gql.Variables

	// DatasetName extracts the dataset an entry of this route shows. A nil
	// extractor means the route shows no dataset.
	DatasetName func(vars gql.Variables) string
}

// Lazy wraps a value known at startup in a resource, for routes whose
// component or query needs no loading.
func Lazy[T any](v T) *resource.Resource[T] {
	return resource.Resolved(v)
}
