package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"crop-recommender/internal/app"
	"crop-recommender/internal/cfg"
	"crop-recommender/internal/client"
	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/recommend"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type options struct {
	server   string
	timeout  time.Duration
	jsonOut  bool
	logLevel string
	local    bool
	limit    int
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "cropctl",
		Short:         "Query a crop recommender",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.SetupLogging(opts.logLevel, "")
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.SetOut(out)

	defaultServer := os.Getenv(common.EnvServerURL)
	if defaultServer == "" {
		defaultServer = common.DefaultServerURL
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "Recommender server URL")
	root.PersistentFlags().DurationVarP(&opts.timeout, "timeout", "t", 10*time.Second, "Timeout for each request")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	statesCmd := &cobra.Command{
		Use:   "states",
		Short: "List the states with region data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			states, err := opts.client().States(ctx)
			if err != nil {
				return fmt.Errorf("error listing states: %w", err)
			}
			return opts.printList(cmd.OutOrStdout(), "states", states)
		},
	}

	districtsCmd := &cobra.Command{
		Use:   "districts <state>",
		Short: "List the districts of a state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			districts, err := opts.client().Districts(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error listing districts: %w", err)
			}
			return opts.printList(cmd.OutOrStdout(), "districts", districts)
		},
	}

	predictCmd := &cobra.Command{
		Use:   "predict <state> <district>",
		Short: "Recommend a crop for a region",
		Long: `The predict command asks the server for a crop recommendation. With --local the data
directory from the environment or CONFIG_FILE is loaded and the recommendation runs in-process.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var (
				rec recommend.Recommendation
				err error
			)
			if opts.local {
				rec, err = predictLocal(ctx, args[0], args[1])
			} else {
				rec, err = opts.client().Recommend(ctx, args[0], args[1])
			}
			if errors.Is(err, features.ErrRegionNotFound) {
				return errors.New(common.MsgRegionNotFound)
			}
			if err != nil {
				return fmt.Errorf("error predicting: %w", err)
			}
			return opts.printRecommendation(cmd.OutOrStdout(), rec)
		},
	}
	predictCmd.Flags().BoolVar(&opts.local, "local", false, "Run the recommendation in-process instead of calling the server")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			recs, err := opts.client().History(ctx, opts.limit)
			if err != nil {
				return fmt.Errorf("error reading history: %w", err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTATE\tDISTRICT\tCROP\tAGREEMENT")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.State, r.District, r.Crop, r.Agreement*100)
			}
			return tw.Flush()
		},
	}
	historyCmd.Flags().IntVarP(&opts.limit, "limit", "n", common.DefaultHistoryLimit, "Number of recommendations to show")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Describe the server's classifier ensemble",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			models, err := opts.client().Models(ctx)
			if err != nil {
				return fmt.Errorf("error listing models: %w", err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), models)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tSIZE")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Name, m.Type, m.Size)
			}
			return tw.Flush()
		},
	}

	root.AddCommand(statesCmd, districtsCmd, predictCmd, historyCmd, modelsCmd)
	return root
}

func (o *options) client() *client.Client {
	return client.New(o.server, o.timeout)
}

func (o *options) printList(w io.Writer, key string, items []string) error {
	if o.jsonOut {
		return writeJSON(w, map[string][]string{key: items})
	}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
	return nil
}

func (o *options) printRecommendation(w io.Writer, rec recommend.Recommendation) error {
	if o.jsonOut {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "Recommended crop for %s, %s: %s\n", rec.District, rec.State, rec.Crop)
	if rec.ImageMissing {
		fmt.Fprintln(w, common.MsgImageMissing)
	} else {
		fmt.Fprintf(w, "Image: %s\n", rec.Image)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Model-wise Predictions")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range rec.Predictions {
		fmt.Fprintf(tw, "  %s:\t%s\t(Label: %d)\n", p.Model, p.Crop, p.Label)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nAgreement: %.0f%% (%s)\n", rec.Agreement*100, tallyString(rec))
	return nil
}

// tallyString renders the vote counts in ensemble order of first appearance.
func tallyString(rec recommend.Recommendation) string {
	seen := make(map[int]bool)
	var parts []string
	for _, p := range rec.Predictions {
		if seen[p.Label] {
			continue
		}
		seen[p.Label] = true
		parts = append(parts, fmt.Sprintf("%s=%d", p.Crop, rec.Tally[p.Label]))
	}
	return strings.Join(parts, ", ")
}

func predictLocal(ctx context.Context, state, district string) (recommend.Recommendation, error) {
	c, err := cfg.Load()
	if err != nil {
		return recommend.Recommendation{}, err
	}
	a, err := app.Build(c, app.Options{Registerer: prometheus.NewRegistry(), NoHistory: true})
	if err != nil {
		return recommend.Recommendation{}, err
	}
	defer a.Close()
	return a.Recommender.Recommend(ctx, state, district)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
