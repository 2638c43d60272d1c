package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/sources"
	"github.com/spigell/job-aggregator/internal/webclient"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the known job sources and which of them are enabled",
	Run: func(cmd *cobra.Command, _ []string) {
		listSources(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringP("query", "q", "golang developer", "sample keywords for the search urls")
	sourcesCmd.Flags().StringP("location", "l", "", "sample location for the search urls")
}

func listSources(cmd *cobra.Command) {
	config, log := setup("sources")

	keywords, _ := cmd.Flags().GetString("query")
	location, _ := cmd.Flags().GetString("location")

	q, err := jobs.NewSearchQuery(keywords, location)
	if err != nil {
		log.Fatal("building sample query", zap.Error(err))
	}

	if err := writeSources(os.Stdout, sources.Default(), config, q, log); err != nil {
		log.Fatal("listing sources", zap.Error(err))
	}
}

func writeSources(w io.Writer, registry *sources.Registry, config *Config, q jobs.SearchQuery, log *zap.Logger) error {
	enabled := make(map[string]bool)
	names := config.Search.Sources
	if len(names) == 0 {
		names = sources.DefaultEnabled
	}
	for _, name := range names {
		enabled[name] = true
	}

	env := sources.Env{
		UserAgent: config.UserAgent,
		Web:       webclient.New(config.UserAgent, log),
		Logger:    log,
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tENABLED\tSEARCH URL")
	for _, name := range registry.Names() {
		var url string
		src, err := registry.Create(name, config.Sources[name], env)
		if err != nil {
			url = "not configured: " + err.Error()
		} else {
			url = src.SearchURL(q)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", name, enabled[name], url)
	}
	return tw.Flush()
}
