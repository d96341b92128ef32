package main

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/warehouses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":1,"name":"wh"}]`)
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL + "/api", token: "tok", http: srv.Client()}
	var items []map[string]any
	require.NoError(t, c.do(context.Background(), http.MethodGet, "/warehouses", nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "wh", items[0]["name"])
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"unique_violation","constraint":"users_username_key"}`)
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, http: srv.Client()}
	err := c.do(context.Background(), http.MethodPost, "/auth/register", map[string]string{"username": "x"}, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, err.Error(), "users_username_key")
}

func TestRenderTable(t *testing.T) {
	output = "table"
	var buf bytes.Buffer
	rows := []map[string]any{{"id": float64(7), "name": "acme", "sector": nil}}
	require.NoError(t, render(&buf, rows, []string{"id", "name", "sector"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"ID", "NAME", "SECTOR"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"7", "acme", "-"}, strings.Fields(lines[1]))
}

func TestRenderYAML(t *testing.T) {
	output = "yaml"
	defer func() { output = "table" }()

	var buf bytes.Buffer
	require.NoError(t, render(&buf, []map[string]any{{"name": "acme"}}, nil))
	assert.Equal(t, "- name: acme\n", buf.String())
}

func TestMultipartBody(t *testing.T) {
	body, contentType := multipartBody(strings.NewReader("a,b\n1,2\n"), "sales.csv", "Sales")

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"Sales"}, form.Value["name"])
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "sales.csv", form.File["file"][0].Filename)
}
