package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/huggablesquare/deputy/internal/catalog"
)

func newScanCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [library]",
		Short: "Build the catalog once and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.library = args[0]
				if err := cmd.Flags().Set("library", args[0]); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			start := time.Now()
			idx, err := catalog.NewBuilder(cfg.CatalogOptions()).Build(cmd.Context(), cfg.LibraryPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(idx.Root())
			}
			return printCatalog(out, idx, time.Since(start))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog tree as JSON")
	return cmd
}

func printCatalog(w io.Writer, idx *catalog.Index, took time.Duration) error {
	headers := []string{"Name", "Kind", "Pages", "Size", "Issues", "ID"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}

	var rows [][]string
	depth := map[string]int{}
	catalog.Walk(idx.Root(), func(e *catalog.Entry) bool {
		if e.ID == catalog.RootID {
			return true
		}
		d := depth[e.ParentID] + 1
		depth[e.ID] = d
		name := strings.Repeat("  ", d-1) + e.Name

		if e.IsDir() {
			rows = append(rows, []string{name, "directory", "", "", strconv.Itoa(e.FileCount), e.ID})
			return true
		}
		kind := e.Format.String()
		if e.Broken {
			kind += " (broken)"
		}
		rows = append(rows, []string{name, kind, strconv.Itoa(e.PageCount), humanize.Bytes(uint64(e.Size)), "", e.ID})
		return true
	})

	if _, err := fmt.Fprintln(w, renderTable(headers, rows, aligns)); err != nil {
		return err
	}
	s := idx.Stats()
	_, err := fmt.Fprintf(w, "%d directories, %d files, %d broken in %s\n",
		s.Directories-1, s.Files, s.Broken, took.Round(time.Millisecond))
	return err
}
