package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show portfolio metrics, sector allocation and top performers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			ctx := cmd.Context()

			var metrics map[string]any
			if err := c.do(ctx, http.MethodGet, "/dashboard/metrics", nil, &metrics); err != nil {
				return err
			}
			var sectors struct {
				Labels []string `json:"labels"`
				Data   []string `json:"data"`
			}
			if err := c.do(ctx, http.MethodGet, "/dashboard/sector-allocation", nil, &sectors); err != nil {
				return err
			}
			var top []map[string]any
			if err := c.do(ctx, http.MethodGet, "/dashboard/top-performers", nil, &top); err != nil {
				return err
			}

			if output != "table" {
				return render(os.Stdout, []map[string]any{{
					"metrics":          metrics,
					"sectorAllocation": sectors,
					"topPerformers":    top,
				}}, nil)
			}

			fmt.Println("Portfolio")
			if err := render(os.Stdout, []map[string]any{metrics}, []string{"totalValue", "activeInvestments", "averageIrr", "dataQualityScore"}); err != nil {
				return err
			}

			fmt.Println("\nSector allocation (%)")
			rows := make([]map[string]any, len(sectors.Labels))
			for i, label := range sectors.Labels {
				rows[i] = map[string]any{"sector": label, "share": sectors.Data[i]}
			}
			if err := render(os.Stdout, rows, []string{"sector", "share"}); err != nil {
				return err
			}

			fmt.Println("\nTop performers")
			return render(os.Stdout, top, []string{"name", "sector", "performance", "value"})
		},
	}
}

func uploadCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a csv, xlsx, json or parquet file as a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			body, contentType := multipartBody(f, filepath.Base(args[0]), name)
			c := newClient()
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, c.baseURL+"/data-sources/upload", body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", contentType)

			var source map[string]any
			if err := c.send(req, &source); err != nil {
				return err
			}
			return render(os.Stdout, []map[string]any{source}, resources["data-sources"].columns)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "data source name (defaults to the file name)")
	return cmd
}

// multipartBody streams file as the "file" part of a form
func multipartBody(file io.Reader, fileName, name string) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if name != "" {
				if err := mw.WriteField("name", name); err != nil {
					return err
				}
			}
			part, err := mw.CreateFormFile("file", fileName)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, file); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}
