// Package routes defines the application's route table.
package routes

import (
	"net/url"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
)

// Route patterns.
const (
	IndexPath   = "/"
	DatasetPath = "/datasets/:name"
)

// Page queries.
var (
	IndexPageQuery = gql.NewQuery("IndexPageQuery", `query IndexPageQuery($search: String = "", $count: Int, $cursor: String) {
  datasets(search: $search, first: $count, after: $cursor) {
    total
    edges {
      node {
        name
      }
    }
  }
}`)

	DatasetPageQuery = gql.NewQuery("DatasetPageQuery", `query DatasetPageQuery($name: String!, $view: BSONArray, $savedViewSlug: String) {
  dataset(name: $name, view: $view, savedViewSlug: $savedViewSlug) {
    id
    name
    defaultGroupSlice
    viewName
  }
}`)
)

// Routes returns a fresh route table: the dataset list at "/" and a
// dataset page at "/datasets/:name" whose "view" query parameter selects
// a saved view.
func Routes() []*router.Route {
	return []*router.Route{
		{
			Path:          IndexPath,
			Component:     router.Lazy(router.Component{Name: "IndexPage"}),
			Query:         router.Lazy(IndexPageQuery),
			DefaultParams: gql.Variables{"count": 10},
		},
		{
			Path:         DatasetPath,
			Component:    router.Lazy(router.Component{Name: "DatasetPage"}),
			Query:        router.Lazy(DatasetPageQuery),
			SearchParams: map[string]string{"view": "savedViewSlug"},
			Transform:    datasetVariables,
			DatasetName:  DatasetName,
		},
	}
}

// DatasetName extracts the dataset name from dataset page variables.
func DatasetName(vars gql.Variables) string {
	name, _ := vars["name"].(string)
	return name
}

// datasetVariables makes sure the page query always receives a view.
func datasetVariables(_ history.State, vars gql.Variables) gql.Variables {
	if _, ok := vars["view"]; !ok {
		vars["view"] = []any{}
	}
	return vars
}

// DatasetURL returns the URL of a dataset page, or of the index when
// dataset is empty. The current proxy prefix is kept.
func DatasetURL(r *router.Router, dataset, savedViewSlug string) string {
	if dataset == "" {
		return r.URL(IndexPath, nil)
	}
	var params url.Values
	if savedViewSlug != "" {
		params = url.Values{"view": {savedViewSlug}}
	}
	return r.URL("/datasets/"+url.PathEscape(dataset), params)
}
