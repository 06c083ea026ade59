package handlers

import (
	"context"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/routes"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// SetView applies a new view to the current dataset. The page is pushed
// once the server has accepted the view.
func SetView(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		view, err := rawOf(string(synchronizer.SetterView), value)
		if err != nil {
			return err
		}
		dataset, err := currentDataset(hc)
		if err != nil {
			return err
		}

		vars := gql.Variables{
			"view":          synchronizer.ViewOrEmpty(view),
			"datasetName":   dataset,
			"savedViewSlug": nil,
		}
		hc.Commit(ctx, synchronizer.SetView, vars, func(*gql.Response) {
			hc.Router.Push(routes.DatasetURL(hc.Router, dataset, ""), history.State{View: view})
		})
		return nil
	}
}

// SetDatasetName switches to another dataset, or to the dataset list when
// the name is empty.
func SetDatasetName(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		name, err := valueOf[string](string(synchronizer.SetterDatasetName), value)
		if err != nil {
			return err
		}

		vars := gql.Variables{"name": nil}
		if name != "" {
			vars["name"] = name
		}
		if hc.Router != nil {
			hc.Router.Push(routes.DatasetURL(hc.Router, name, ""), history.State{})
		}
		hc.Commit(ctx, synchronizer.SetDataset, vars, nil)
		return nil
	}
}

// SetSavedViewSlug loads a saved view of the current dataset, or the
// unfiltered dataset when the slug is empty.
func SetSavedViewSlug(hc *synchronizer.HandlerContext) synchronizer.ValueHandler {
	return func(ctx context.Context, value any) error {
		slug, err := valueOf[string](string(synchronizer.SetterSavedViewSlug), value)
		if err != nil {
			return err
		}
		dataset, err := currentDataset(hc)
		if err != nil {
			return err
		}

		vars := gql.Variables{
			"view":          synchronizer.ViewOrEmpty(nil),
			"datasetName":   dataset,
			"savedViewSlug": nil,
		}
		if slug != "" {
			vars["savedViewSlug"] = slug
		}
		hc.Router.Push(routes.DatasetURL(hc.Router, dataset, slug), history.State{SavedViewSlug: slug})
		hc.Commit(ctx, synchronizer.SetView, vars, nil)
		return nil
	}
}
