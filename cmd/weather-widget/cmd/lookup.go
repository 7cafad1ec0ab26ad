package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/widget"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup QUERY...",
	Short: "Print current conditions for one or more locations",
	Long: `Resolve each query (ZIP code or free text such as "Redwood City, CA") and
print its current conditions. Queries run concurrently; upstream calls still
respect RATE_LIMIT_INTERVAL.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringP("unit", "u", "F", "Temperature unit, F or C")
	lookupCmd.Flags().Int("concurrency", 4, "Maximum queries in flight")
}

type lookupResult struct {
	query string
	geo   weather.GeoResult
	snap  *weather.Snapshot
	err   error
}

func runLookup(cmd *cobra.Command, args []string) error {
	unitFlag, _ := cmd.Flags().GetString("unit")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	unit, err := weather.ParseUnit(unitFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStack(cfg)

	results := make([]lookupResult, len(args))
	ctx := cmd.Context()

	// A failed query must not cancel its siblings, so errors are collected
	// per result rather than through the group.
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, q := range args {
		i, q := i, q
		g.Go(func() error {
			results[i] = lookup(ctx, st, q)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		printResult(cmd.OutOrStdout(), r, unit)
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errors.Join(errs...)
}

func lookup(ctx context.Context, st *stack, q string) lookupResult {
	res := lookupResult{query: q}

	geo, err := st.geocoder.Geocode(ctx, q)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", q, err)
		return res
	}
	res.geo = geo

	c := geo.Coordinates()
	snap, err := st.service.FetchWeather(ctx, &c)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", q, err)
		return res
	}
	res.snap = snap
	return res
}

func printResult(out io.Writer, r lookupResult, unit weather.Unit) {
	if r.snap == nil {
		fmt.Fprintf(out, "%s\t%s\n", r.query, widget.UserMessage(r.err))
		return
	}
	fmt.Fprintf(out, "%s\t%d°%s\t%s\t%s\n",
		r.geo.DisplayName,
		weather.Display(r.snap.TemperatureF, unit), unit,
		r.snap.Condition,
		weather.FormatTimezone(r.snap.UTCOffsetSeconds),
	)
}
