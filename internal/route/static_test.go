package route

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tableYAML = `
default: h1:9000
routes:
  cpu: h2:9000
  mem: h3:9000
`

func TestLoadStaticTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tableYAML), 0o600))

	table, err := LoadStaticTable(path)
	require.NoError(t, err)
	assert.Equal(t, "h1:9000", table.Default)
	assert.Equal(t, map[string]string{"cpu": "h2:9000", "mem": "h3:9000"}, table.Routes)
}

func TestLoadStaticTable_Errors(t *testing.T) {
	_, err := LoadStaticTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseStaticTable([]byte("routes: [not, a, map]"))
	assert.Error(t, err)

	_, err = ParseStaticTable([]byte("default: \"\"\n"))
	assert.Error(t, err)
}

func TestStaticRouter_Route(t *testing.T) {
	table, err := ParseStaticTable([]byte(tableYAML))
	require.NoError(t, err)
	router := NewStaticRouter(table)

	routes, err := router.Route(context.Background(), []string{"cpu", "disk"})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "h2:9000", routes["cpu"].Endpoint)
	assert.Equal(t, "h1:9000", routes["disk"].Endpoint)
}

func TestStaticRouter_NoDefault(t *testing.T) {
	router := NewStaticRouter(&StaticTable{Routes: map[string]string{"cpu": "h2:9000"}})

	routes, err := router.Route(context.Background(), []string{"cpu", "disk"})
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.NotContains(t, routes, "disk")
}
