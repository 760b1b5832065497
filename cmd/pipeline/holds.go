package main

import (
	"github.com/spf13/cobra"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
)

func holdsCmd() *cobra.Command {
	var (
		version  string
		reason   string
		stage    string
		search   string
		sort     string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "holds",
		Short: "List HOLD results awaiting reprocessing",
		Long: `Holds pages through stored HOLD results of a taxonomy version, newest
first, with the hold reason and the stage a retry should resume from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := NewApp(ctx, appOptions{LogOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			filters := holdFilters(app.cfg, version, reason, stage)
			req := pagination.PageRequest{Page: page, PageSize: pageSize}
			if search != "" {
				req.Search = &search
			}
			if sort != "" {
				req.Sort = query.ParseSortFields(sort)
			}

			result, err := app.Stores().Results.ListHolds(ctx, req, filters)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Taxonomy version (defaults to taxonomy.version)")
	cmd.Flags().StringVar(&reason, "reason", "", "Hold reason, e.g. AMBIGUOUS")
	cmd.Flags().StringVar(&stage, "stage", "", "Retry stage, e.g. LLM")
	cmd.Flags().StringVar(&search, "search", "", "Company id substring")
	cmd.Flags().StringVar(&sort, "sort", "", "Sort fields, e.g. -Confidence,CompanyID")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to pagination.default_page_size)")

	return cmd
}

func holdFilters(cfg *config.Config, version, reason, stage string) classifications.Filters {
	if version == "" {
		version = cfg.Taxonomy.Version
	}
	f := classifications.Filters{TaxonomyVersion: &version}
	if reason != "" {
		f.Reason = &reason
	}
	if stage != "" {
		f.RetryStage = &stage
	}
	return f
}
