package route

import (
	"context"
	"fmt"
	"os"

	"github.com/devrev/tsdb-client-go/pkg/model"
	"gopkg.in/yaml.v3"
)

// StaticTable is the on-disk form of a fixed routing table
type StaticTable struct {
	Default string            `yaml:"default"`
	Routes  map[string]string `yaml:"routes"`
}

// LoadStaticTable reads a routing table from a YAML file
func LoadStaticTable(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table %s: %w", path, err)
	}
	return ParseStaticTable(data)
}

// ParseStaticTable decodes a YAML routing table
func ParseStaticTable(data []byte) (*StaticTable, error) {
	var table StaticTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if table.Default == "" && len(table.Routes) == 0 {
		return nil, fmt.Errorf("route table has neither a default endpoint nor routes")
	}
	return &table, nil
}

// StaticRouter routes metrics from a fixed table
type StaticRouter struct {
	table *StaticTable
}

// NewStaticRouter creates a router over table
func NewStaticRouter(table *StaticTable) *StaticRouter {
	return &StaticRouter{table: table}
}

// Route implements Router
func (r *StaticRouter) Route(ctx context.Context, metrics []string) (map[string]*model.Route, error) {
	routes := make(map[string]*model.Route, len(metrics))
	for _, metric := range metrics {
		ep, ok := r.table.Routes[metric]
		if !ok {
			ep = r.table.Default
		}
		if ep == "" {
			continue
		}
		routes[metric] = &model.Route{Metric: metric, Endpoint: ep}
	}
	return routes, nil
}

// Evict is a no-op for a fixed table
func (r *StaticRouter) Evict(ctx context.Context, metrics ...string) {}
