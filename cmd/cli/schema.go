package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the entity declarations compiled into this build",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ddl",
		Short: "Print the PostgreSQL DDL derived from the entity declarations",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(schema.DDL(domain.Registry))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "contracts",
		Short: "Print the select and insert contracts of every entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := domain.Describe()
			if output == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(docs)
		},
	})
	return cmd
}
