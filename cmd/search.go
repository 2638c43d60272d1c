package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/logger"
	"github.com/spigell/job-aggregator/internal/server"
)

const (
	PromptBrowse          = "Browse jobs by source"
	PromptReportByCompany = "Report by company"
	PromptJobsToFile      = "Dump jobs to file"
	PromptExit            = "Exit"
	PromptBack            = "back"

	outputText = "text"
	outputJSON = "json"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptBrowse, PromptReportByCompany, PromptJobsToFile, PromptExit},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search across all enabled sources",
	Run: func(cmd *cobra.Command, _ []string) {
		search(cmd)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("query", "q", "", "keywords to search for (required)")
	searchCmd.Flags().StringP("location", "l", "", "location to search in")
	searchCmd.Flags().String("job-type", "", "keep only jobs of this type: "+jobTypeNames())
	searchCmd.Flags().String("experience", "", "keep only jobs whose experience requirement mentions this text")
	searchCmd.Flags().Bool("include-stale", false, "show listings older than the freshness window")
	searchCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
	searchCmd.Flags().BoolP("interactive", "i", false, "browse the result after the search")

	searchCmd.MarkFlagRequired("query")
}

func search(cmd *cobra.Command) {
	ctx := context.Background()

	config, log := setup("search")

	query, _ := cmd.Flags().GetString("query")
	location, _ := cmd.Flags().GetString("location")
	includeStale, _ := cmd.Flags().GetBool("include-stale")
	output, _ := cmd.Flags().GetString("output")
	interactive, _ := cmd.Flags().GetBool("interactive")

	experience, _ := cmd.Flags().GetString("experience")
	rawJobType, _ := cmd.Flags().GetString("job-type")
	jobType, err := jobs.ParseJobType(rawJobType)
	if err != nil {
		log.Fatal("parsing job type", zap.Error(err))
	}

	if output != outputText && output != outputJSON {
		log.Fatal("unsupported output format", zap.String("output", output))
	}

	orch, err := buildOrchestrator(config, log)
	if err != nil {
		log.Fatal("building sources", zap.Error(err))
	}

	rdb, err := connectRedis(ctx, config, log)
	if err != nil {
		log.Warn("search cache is unavailable", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	log.Info("starting the search", append(
		logger.QueryFields(query, location),
		zap.Int("sources", len(orch.Sources())),
	)...)

	res, err := buildSearcher(orch, rdb, config, log).Search(ctx, aggregator.Request{
		Query:        jobs.SearchQuery{Keywords: query, Location: location},
		IncludeStale: includeStale,
		JobType:      jobType,
		Experience:   experience,
	})
	if err != nil {
		log.Fatal("search failed", zap.Error(err))
	}

	switch output {
	case outputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(server.NewSearchResponse(res)); err != nil {
			log.Fatal("encoding result", zap.Error(err))
		}
	default:
		printResult(os.Stdout, res)
	}

	if !interactive {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, res, log); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, res *aggregator.Result, log *zap.Logger) error {
	switch action {
	case PromptExit:
		log.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptBrowse:
		return browse(res)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(res.ReportByCompany(), "", "  ")
		log.Info(string(pretty), zap.Int("jobs count", res.TotalCount()))
		return nil
	case PromptJobsToFile:
		filename, err := res.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		log.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// browse lets the user pick a source and then a single listing to print.
func browse(res *aggregator.Result) error {
	for {
		items := make([]string, 0, len(res.Order)+1)
		for _, name := range res.Order {
			items = append(items, sourceLabel(res, name))
		}

		sourcePrompt := promptui.Select{
			Label: "Choose a source and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := sourcePrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		b := res.Buckets[res.Order[idx]]
		if b == nil || len(b.Listings) == 0 {
			continue
		}

		if err := browseBucket(b); err != nil {
			return err
		}
	}
}

func browseBucket(b *jobs.Bucket) error {
	for {
		items := make([]string, 0, len(b.Listings)+1)
		for i := range b.Listings {
			items = append(items, strconv.Itoa(i+1)+". "+listingLine(&b.Listings[i]))
		}

		listingPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
			Size:  10,
		}

		idx, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		printListing(os.Stdout, &b.Listings[idx])
	}
}

func sourceLabel(res *aggregator.Result, name string) string {
	n, synthetic := 0, 0
	if b := res.Buckets[name]; b != nil {
		n, synthetic = b.Len(), b.Synthetic()
	}

	label := fmt.Sprintf("%s (%d jobs", name, n)
	if synthetic > 0 {
		label += fmt.Sprintf(", %d samples", synthetic)
	}
	label += ")"
	if res.Failed(name) {
		label += " [failed]"
	}
	return label
}

func listingLine(l *jobs.JobListing) string {
	line := fmt.Sprintf("%s / %s / %s / %s", l.Title, l.Company, l.Location, l.URL)
	if l.IsSynthetic {
		line += " [sample]"
	}
	if !l.IsCurrent {
		line += " [stale]"
	}
	return line
}

func printResult(w io.Writer, res *aggregator.Result) {
	fmt.Fprintf(w, "Search: %s\n", res.Query)
	for _, name := range res.Order {
		fmt.Fprintf(w, "\n== %s ==\n", sourceLabel(res, name))

		b := res.Buckets[name]
		if b == nil {
			continue
		}
		for i := range b.Listings {
			fmt.Fprintf(w, "  %s\n", listingLine(&b.Listings[i]))
		}
	}

	fmt.Fprintf(w, "\nTotal: %d jobs, %d samples\n", res.TotalCount(), res.SyntheticCount())

	if len(res.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, "Failed sources:")
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s: %s (%s)\n", f.Source, f.Error, f.Kind)
	}
}

func printListing(w io.Writer, l *jobs.JobListing) {
	fmt.Fprintf(w, "\n%s\n", l.Title)
	fmt.Fprintf(w, "  company:    %s\n", l.Company)
	fmt.Fprintf(w, "  location:   %s\n", l.Location)
	fmt.Fprintf(w, "  type:       %s\n", l.JobType)
	fmt.Fprintf(w, "  experience: %s\n", l.Experience)
	fmt.Fprintf(w, "  salary:     %s\n", l.Salary)
	fmt.Fprintf(w, "  posted:     %s\n", l.Posted)
	fmt.Fprintf(w, "  url:        %s\n\n", l.URL)
	fmt.Fprintf(w, "%s\n\n", l.Description)
}

func jobTypeNames() string {
	types := jobs.JobTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
