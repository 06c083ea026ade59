package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/routes"
	"github.com/fiftyone-dev/appsync/pkg/sessiontest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMatchCmd(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		route string
		want  []string
	}{
		{"index", "/", "/", []string{`"count": 10`}},
		{"dataset", "/datasets/quickstart", "/datasets/:name", []string{`"name": "quickstart"`}},
		{"saved view", "/datasets/quickstart?view=my-view", "/datasets/:name", []string{`"savedViewSlug": "my-view"`}},
		{"proxy", "/p/datasets/a%20b?proxy=/p", "/datasets/:name", []string{`"name": "a b"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "match", tt.path)
			require.NoError(t, err)
			assert.Contains(t, out, "Route:     "+tt.route)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestMatchCmd_NotFound(t *testing.T) {
	_, err := execute(t, "match", "/nowhere")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeRouteNotFound))
}

func TestRun_PrintsFormattedErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--no-color", "match", "/nowhere"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ERROR E100: No route matches path")
	assert.Contains(t, stderr.String(), "/nowhere")
	assert.NotContains(t, stderr.String(), "\033[")

	stdout.Reset()
	assert.Equal(t, 0, run([]string{"version", "--short"}, &stdout, &stderr))
	assert.Equal(t, version+"\n", stdout.String())
}

func TestCodesCmd(t *testing.T) {
	out, err := execute(t, "codes")
	require.NoError(t, err)
	for _, code := range []string{errors.CodeRouteNotFound, errors.CodeWriterNotRegistered, errors.CodeConfigInvalid} {
		assert.Contains(t, out, code)
	}

	out, err = execute(t, "codes", errors.CodeConfigMissing)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file not found")

	_, err = execute(t, "codes", "E000")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version:")
}

func TestMockServer(t *testing.T) {
	srv := newMockServer(newLogger(io.Discard, false), []string{"quickstart", "cifar10"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := gql.NewClient(ts.URL + sessiontest.GraphQLPath)
	ctx := context.Background()

	resp, err := c.Fetch(ctx, routes.IndexPageQuery, gql.Variables{"count": 10}, gql.NetworkOnly).Wait(ctx)
	require.NoError(t, err)
	var index struct {
		Datasets struct {
			Total int `json:"total"`
		} `json:"datasets"`
	}
	require.NoError(t, resp.Decode(&index))
	assert.Equal(t, 2, index.Datasets.Total)

	resp, err = c.Fetch(ctx, routes.DatasetPageQuery, gql.Variables{"name": "cifar10"}, gql.NetworkOnly).Wait(ctx)
	require.NoError(t, err)
	var page struct {
		Dataset struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"dataset"`
	}
	require.NoError(t, resp.Decode(&page))
	assert.Equal(t, "2", page.Dataset.ID)
	assert.Equal(t, "cifar10", page.Dataset.Name)

	_, err = c.Fetch(ctx, routes.DatasetPageQuery, gql.Variables{"name": "missing"}, gql.NetworkOnly).Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeQueryFailed))
}
