package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/gql/gqltest"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

var (
	eventDispatch  = synchronizer.Dispatch{Kind: synchronizer.KindEvent, Name: "refresh", Subscription: "sub-1"}
	setterDispatch = synchronizer.Dispatch{Kind: synchronizer.KindSetter, Name: "view", Subscription: "sub-1"}
)

func ok(context.Context) error { return nil }

func testRouter(t *testing.T) (*router.Router, *history.MemoryHistory) {
	t.Helper()
	hist := history.NewMemory("/", history.State{})
	dataset := func(vars gql.Variables) string {
		name, _ := vars["name"].(string)
		return name
	}
	r := router.New(router.Options{
		Routes: []*router.Route{
			{Path: "/", Component: router.Lazy(router.Component{Name: "IndexPage"})},
			{Path: "/datasets/:name", Component: router.Lazy(router.Component{Name: "DatasetPage"}), DatasetName: dataset},
		},
		History:     hist,
		Environment: gqltest.New(),
		Scheduler:   router.Immediate,
	})
	t.Cleanup(r.Close)
	return r, hist
}

// commits subscribes after any observers, so a received entry has been
// seen by them.
func commits(r *router.Router) <-chan *router.Entry {
	ch := make(chan *router.Entry, 8)
	r.Subscribe(func(e *router.Entry, _ history.Action, _ *router.Entry) { ch <- e }, nil)
	return ch
}

func waitCommit(t *testing.T, ch <-chan *router.Entry) *router.Entry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for commit")
		return nil
	}
}
