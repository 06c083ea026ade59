package sessiontest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/sessiontest"
	"github.com/fiftyone-dev/appsync/pkg/stream"
)

func newServer(t *testing.T, opts ...sessiontest.Option) (*sessiontest.Server, *httptest.Server) {
	t.Helper()
	srv := sessiontest.New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + sessiontest.EventsPath
}

func commit(t *testing.T, c *gql.Client, req *gql.Request, vars gql.Variables) (*gql.Response, error) {
	t.Helper()
	type result struct {
		resp *gql.Response
		err  error
	}
	done := make(chan result, 1)
	c.Commit(context.Background(), req, vars, gql.MutationCallbacks{
		OnCompleted: func(resp *gql.Response) { done <- result{resp: resp} },
		OnError:     func(err error) { done <- result{err: err} },
	})
	select {
	case r := <-done:
		return r.resp, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not settle")
		return nil, nil
	}
}

func TestServer_Health(t *testing.T) {
	_, ts := newServer(t)

	resp, err := http.Get(ts.URL + sessiontest.HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestServer_Query(t *testing.T) {
	srv, ts := newServer(t)
	srv.HandleData("DatasetPageQuery", `{"dataset":{"name":"quickstart"}}`)
	srv.Handle("Broken", func(map[string]any) (any, error) {
		return nil, fmt.Errorf("dataset not found")
	})

	c := gql.NewClient(ts.URL + sessiontest.GraphQLPath)

	op := c.Fetch(context.Background(), gql.NewQuery("DatasetPageQuery", "query DatasetPageQuery { dataset }"),
		gql.Variables{"name": "quickstart"}, gql.NetworkOnly)
	resp, err := op.Wait(context.Background())
	require.NoError(t, err)

	var data struct {
		Dataset struct {
			Name string `json:"name"`
		} `json:"dataset"`
	}
	require.NoError(t, resp.Decode(&data))
	assert.Equal(t, "quickstart", data.Dataset.Name)

	_, err = c.Fetch(context.Background(), gql.NewQuery("Broken", "query Broken { x }"), nil, gql.NetworkOnly).
		Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset not found")

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "quickstart", reqs[0].Variables["name"])
	assert.Equal(t, []string{"DatasetPageQuery", "Broken"}, srv.RequestNames())
}

func TestServer_MutationsUpdateSession(t *testing.T) {
	srv, ts := newServer(t, sessiontest.WithSession(sessiontest.Session{Dataset: "old"}))
	c := gql.NewClient(ts.URL + sessiontest.GraphQLPath)

	assert.Equal(t, "old", srv.Session().Dataset)
	assert.Equal(t, []string{}, srv.Session().Selected)

	resp, err := commit(t, c, gql.NewMutation("setView", "mutation setView"), gql.Variables{
		"view":          []any{map[string]any{"_cls": "Limit"}},
		"datasetName":   "quickstart",
		"savedViewSlug": "my-view",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"setView":true}`, string(resp.Data))

	_, err = commit(t, c, gql.NewMutation("setGroupSlice", "mutation setGroupSlice"), gql.Variables{"slice": "left"})
	require.NoError(t, err)
	_, err = commit(t, c, gql.NewMutation("setSpaces", "mutation setSpaces"), gql.Variables{"spaces": map[string]any{"id": "root"}})
	require.NoError(t, err)
	_, err = commit(t, c, gql.NewMutation("setSelected", "mutation setSelected"), gql.Variables{"selected": []string{"a", "b"}})
	require.NoError(t, err)
	_, err = commit(t, c, gql.NewMutation("setSample", "mutation setSample"), gql.Variables{"id": "s1", "groupId": "g1"})
	require.NoError(t, err)

	session := srv.Session()
	assert.Equal(t, "quickstart", session.Dataset)
	assert.JSONEq(t, `[{"_cls":"Limit"}]`, string(session.View))
	assert.Equal(t, "my-view", session.SavedViewSlug)
	assert.Equal(t, "left", session.GroupSlice)
	assert.JSONEq(t, `{"id":"root"}`, string(session.Spaces))
	assert.Equal(t, []string{"a", "b"}, session.Selected)
	assert.Equal(t, "s1", session.SampleID)
	assert.Equal(t, "g1", session.GroupID)

	_, err = commit(t, c, gql.NewMutation("setDataset", "mutation setDataset"), gql.Variables{"name": "other"})
	require.NoError(t, err)
	assert.Equal(t, sessiontest.Session{Dataset: "other", Selected: []string{}}, srv.Session())

	resp, err = commit(t, c, gql.NewMutation("setColorScheme", "mutation setColorScheme"), gql.Variables{"colorScheme": map[string]any{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(resp.Data))
}

func TestServer_Events(t *testing.T) {
	srv, ts := newServer(t, sessiontest.WithSession(sessiontest.Session{Dataset: "quickstart"}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Error(t, srv.Push("state_update", map[string]any{}), "push without a client")

	conn, err := stream.NewWebSocketDialer(wsURL(ts)).Dial(ctx, stream.Subscribe{
		Subscription: "sub-1",
		Events:       []string{"state_update", "select_samples"},
	})
	require.NoError(t, err)
	defer conn.Close()

	sub, err := srv.WaitForClient(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub)
	assert.Equal(t, 1, srv.Clients())

	require.NoError(t, srv.Push("select_samples", map[string]any{"sample_ids": []string{"a"}}))
	ev, err := conn.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "select_samples", ev.Name)
	assert.JSONEq(t, `{"sample_ids":["a"]}`, string(ev.Data))

	require.NoError(t, srv.PushState())
	ev, err = conn.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "state_update", ev.Name)

	var payload struct {
		State sessiontest.Session `json:"state"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "quickstart", payload.State.Dataset)

	assert.Error(t, srv.Push("refresh", map[string]any{}), "refresh is not subscribed")

	srv.Disconnect()
	_, err = conn.Next(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, srv.Clients())
}
