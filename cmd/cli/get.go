package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// resource maps a CLI name to its API path and the columns shown in table output
type resource struct {
	path    string
	columns []string
}

var resources = map[string]resource{
	"warehouses":    {"/warehouses", []string{"id", "name", "size", "status", "creditsPerHour", "nodes"}},
	"data-sources":  {"/data-sources", []string{"id", "name", "type", "status", "rowCount", "createdAt"}},
	"query-history": {"/query-history", []string{"id", "status", "warehouseId", "duration", "rowsReturned", "createdAt"}},
	"charts":        {"/charts", []string{"id", "name", "type", "dataSourceId", "createdAt"}},
	"dashboards":    {"/dashboards", []string{"id", "name", "createdAt"}},
	"conversations": {"/ai/conversations", []string{"id", "createdAt"}},
	"companies":     {"/companies", []string{"id", "name", "sector", "stage", "revenue", "marketCap"}},
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get <resource> [id]",
		Short:     "List resources, or show one by id",
		Long:      "Resources: " + strings.Join(resourceNames(), ", "),
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: resourceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := resources[args[0]]
			if !ok {
				return fmt.Errorf("unknown resource %q (one of %s)", args[0], strings.Join(resourceNames(), ", "))
			}

			c := newClient()
			if len(args) == 2 {
				var item map[string]any
				if err := c.do(cmd.Context(), http.MethodGet, res.path+"/"+args[1], nil, &item); err != nil {
					return err
				}
				return render(os.Stdout, []map[string]any{item}, res.columns)
			}

			var items []map[string]any
			if err := c.do(cmd.Context(), http.MethodGet, res.path, nil, &items); err != nil {
				return err
			}
			return render(os.Stdout, items, res.columns)
		},
	}
}

// render writes rows in the selected output format; columns apply to tables only
func render(w io.Writer, rows []map[string]any, columns []string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rows)
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = strings.ToUpper(col)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cell(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
