package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tripwindow/internal/config"
	"tripwindow/internal/db"
	"tripwindow/internal/logging"
	"tripwindow/internal/memstore"
	"tripwindow/internal/resolve"
	"tripwindow/internal/trips"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the trips of a bus for a date, or a single trip reference",
	Long: "resolve prints the trip descriptors the API would return. With --fixture it reads a YAML " +
		"fixture instead of the database, which is handy for checking windows offline.",
	Example: "  tripwindow resolve --bus NB-1234 --date 2024-01-11\n" +
		"  tripwindow resolve --trip SCHEDULED_NB-1234_2024-01-11_0 --output yaml\n" +
		"  tripwindow resolve --fixture testdata/day.yaml --bus ALL --date 2024-01-11 --now 2024-01-12T09:00:00+05:30",
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.String("bus", "", "bus id (empty or ALL for every bus)")
	f.String("date", "", "service date, YYYY-MM-DD")
	f.String("trip", "", "a SCHEDULED_<bus>_<date>_<index> reference")
	f.String("fixture", "", "YAML fixture to resolve against instead of the database")
	f.String("utc-offset", "+05:30", "local UTC offset used with --fixture")
	f.String("policy", "", "policy YAML file used with --fixture")
	f.String("now", "", "pin the current time (RFC 3339) used for regime selection")
	f.StringP("output", "o", "json", "output format: json or yaml")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	busArg, _ := flags.GetString("bus")
	dateArg, _ := flags.GetString("date")
	tripArg, _ := flags.GetString("trip")
	fixture, _ := flags.GetString("fixture")
	output, _ := flags.GetString("output")
	nowArg, _ := flags.GetString("now")

	if output != "json" && output != "yaml" {
		return fmt.Errorf("unknown output format %q", output)
	}
	if (tripArg == "") == (dateArg == "") {
		return fmt.Errorf("exactly one of --date or --trip is required")
	}

	var opts []resolve.Option
	if nowArg != "" {
		pinned, err := time.Parse(time.RFC3339, nowArg)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		opts = append(opts, resolve.WithClock(func() time.Time { return pinned }))
	}

	var (
		resolver *resolve.Resolver
		matcher  *resolve.Matcher
	)
	if fixture != "" {
		logger = logging.SetupWithWriter(os.Getenv("APP_ENV"), os.Stderr)
		offset, _ := flags.GetString("utc-offset")
		loc, err := trips.ParseOffset(offset)
		if err != nil {
			return fmt.Errorf("--utc-offset: %w", err)
		}
		policy := resolve.DefaultPolicy()
		if path, _ := flags.GetString("policy"); path != "" {
			if err := config.LoadPolicyFile(path, &policy); err != nil {
				return err
			}
		}
		primary, legacy, err := memstore.LoadFixture(fixture)
		if err != nil {
			return err
		}
		opts = append([]resolve.Option{
			resolve.WithPolicy(policy),
			resolve.WithLocation(loc),
			resolve.WithLogger(logger),
		}, opts...)
		resolver = resolve.New(resolve.ScheduleChain{primary, legacy}, primary, primary, opts...)
		matcher = resolve.NewMatcher(primary)
	} else {
		if err := loadConfig(); err != nil {
			return err
		}
		sqlDB, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		store := db.NewStore(sqlDB)
		opts = append([]resolve.Option{
			resolve.WithPolicy(cfg.Policy),
			resolve.WithLocation(cfg.Location),
			resolve.WithLogger(logger),
		}, opts...)
		resolver = resolve.New(resolve.ScheduleChain{store, db.NewPowerConfigStore(sqlDB)}, store, store, opts...)
		matcher = resolve.NewMatcher(store)
	}

	ctx := cmd.Context()
	if tripArg != "" {
		ref, ok := trips.Decode(tripArg)
		if !ok {
			return fmt.Errorf("%q is not a scheduled trip reference", tripArg)
		}
		d, err := resolver.ResolveRef(ctx, ref)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("trip %s not found", tripArg)
		}
		one := []trips.Descriptor{*d}
		if err := matcher.AttachCounts(ctx, one); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), output, one[0])
	}

	date, err := trips.ParseDate(dateArg)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	res, err := resolver.Resolve(ctx, trips.BusFilter(busArg), date)
	if err != nil {
		return err
	}
	if err := matcher.AttachCounts(ctx, res.Trips); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), output, res)
}

func printResult(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
