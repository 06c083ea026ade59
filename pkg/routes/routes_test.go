package routes

import (
	"reflect"
	"testing"

	"github.com/fiftyone-dev/appsync/pkg/gql/gqltest"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
)

func TestRoutes_Match(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		state    history.State
		wantPath string
		wantVars map[string]any
		wantSet  string
	}{
		{
			name:     "index",
			path:     "/",
			wantPath: IndexPath,
			wantVars: map[string]any{"count": 10},
		},
		{
			name:     "dataset",
			path:     "/datasets/quickstart",
			wantPath: DatasetPath,
			wantVars: map[string]any{"name": "quickstart", "view": []any{}},
			wantSet:  "quickstart",
		},
		{
			name:     "dataset with saved view",
			path:     "/datasets/quick%20start?view=my-view",
			wantPath: DatasetPath,
			wantVars: map[string]any{"name": "quick start", "savedViewSlug": "my-view", "view": []any{}},
			wantSet:  "quick start",
		},
		{
			name:     "dataset with view in state",
			path:     "/datasets/quickstart/",
			state:    history.State{GroupSlice: "left"},
			wantPath: DatasetPath,
			wantVars: map[string]any{"name": "quickstart", "groupSlice": "left", "view": []any{}},
			wantSet:  "quickstart",
		},
		{
			name:     "behind proxy",
			path:     "/proxy/abc/datasets/quickstart?proxy=/proxy/abc",
			wantPath: DatasetPath,
			wantVars: map[string]any{"name": "quickstart", "view": []any{}},
			wantSet:  "quickstart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pathname, search := history.ParsePath(tt.path)
			route, match := router.MatchRoutes(Routes(), pathname, search, tt.state)
			if match == nil {
				t.Fatalf("no match for %q", tt.path)
			}
			if match.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", match.Path, tt.wantPath)
			}
			if !reflect.DeepEqual(map[string]any(match.Variables), tt.wantVars) {
				t.Errorf("Variables = %#v, want %#v", match.Variables, tt.wantVars)
			}

			var got string
			if route.DatasetName != nil {
				got = route.DatasetName(match.Variables)
			}
			if got != tt.wantSet {
				t.Errorf("DatasetName = %q, want %q", got, tt.wantSet)
			}
		})
	}
}

func TestRoutes_NoMatch(t *testing.T) {
	for _, path := range []string{"/datasets", "/datasets/a/b", "/teams"} {
		if _, match := router.MatchRoutes(Routes(), path, "", history.State{}); match != nil {
			t.Errorf("%q matched %q", path, match.Path)
		}
	}
}

func TestDatasetURL(t *testing.T) {
	tests := []struct {
		name    string
		current string
		dataset string
		slug    string
		want    string
	}{
		{"index", "/", "", "", "/"},
		{"dataset", "/", "quickstart", "", "/datasets/quickstart"},
		{"escaped", "/", "quick start", "", "/datasets/quick%20start"},
		{"saved view", "/", "quickstart", "my-view", "/datasets/quickstart?view=my-view"},
		{"proxy", "/p/datasets/a?proxy=/p", "b", "", "/p/datasets/b?proxy=%2Fp"},
		{"proxy index", "/p/datasets/a?proxy=/p", "", "", "/p/?proxy=%2Fp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := router.New(router.Options{
				Routes:      Routes(),
				History:     history.NewMemory(tt.current, history.State{}),
				Environment: gqltest.New(),
				Scheduler:   router.Immediate,
			})
			defer r.Close()

			if got := DatasetURL(r, tt.dataset, tt.slug); got != tt.want {
				t.Errorf("DatasetURL = %q, want %q", got, tt.want)
			}
		})
	}
}
