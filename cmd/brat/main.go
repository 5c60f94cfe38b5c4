// Command brat enriches a stream network with beaver dam capacity hydrology,
// conflict and management classifications and dam density statistics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chrissnell/brat/internal/app"
	"github.com/chrissnell/brat/internal/constants"
	"github.com/chrissnell/brat/internal/export"
	"github.com/chrissnell/brat/internal/log"
	"github.com/chrissnell/brat/internal/pipeline"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/pkg/config"
	"github.com/spf13/cobra"
)

type options struct {
	configFile    string
	configBackend string
	debug         bool

	region        int
	workers       int
	management    bool
	keepLabels    bool
	snapTolerance float64
	summaryFile   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "brat",
		Short: "Beaver Restoration Assessment Tool network enrichment",
		Long: `brat derives hydrology, conflict potential, limiting factors,
restoration opportunity and observed dam density for every reach of a
stream network held in a SQLite or PostgreSQL feature store.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	flags.StringVar(&opts.configBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	flags.BoolVar(&opts.debug, "debug", false, "Turn on debugging output")

	cmd.AddCommand(
		stageCmd(opts, "run", "Run hydrology, classification and dam statistics", app.AllStages),
		stageCmd(opts, "hydro", "Compute baseflow, peakflow and stream power", app.Stages{Hydrology: true}),
		stageCmd(opts, "classify", "Classify conflict potential, limitations and opportunities", app.Stages{Classify: true}),
		stageCmd(opts, "dams", "Compute dam density and capacity summary fields", app.Stages{Dams: true}),
		initCmd(opts),
		serveCmd(opts),
		exportCmd(opts),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "brat %s\n", constants.Version)
		},
	}
}

// setup initializes logging and loads the configuration, applying any flags
// the user set on the command line.
func setup(cmd *cobra.Command, opts *options) (*app.App, error) {
	if err := log.Init(opts.debug); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts.configFile, opts.configBackend)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("region") {
		cfg.Hydrology.Region = opts.region
	}
	if f.Changed("workers") {
		cfg.Classification.Workers = opts.workers
	}
	if f.Changed("management") {
		cfg.Classification.Management = opts.management
	}
	if f.Changed("keep-labels") {
		cfg.Classification.KeepLabels = opts.keepLabels
	}
	if f.Changed("snap-tolerance") {
		cfg.Dams.SnapTolerance = &opts.snapTolerance
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return app.New(cfg, log.GetSugaredLogger()), nil
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := config.Load(provider)
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the --config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}

func stageCmd(opts *options, use, short string, stages app.Stages) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync()

			sum, err := a.RunPipeline(cmd.Context(), stages)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), opts.summaryFile, sum)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.summaryFile, "summary", "", "Write the run summary as JSON to this file ('-' for stdout)")
	if stages.Hydrology {
		f.IntVar(&opts.region, "region", 0, "Hydrologic region code for the regional curves (0 uses the generic curves)")
	}
	if stages.Classify {
		f.IntVar(&opts.workers, "workers", 0, "Classification workers (0 uses GOMAXPROCS)")
		f.BoolVar(&opts.management, "management", false, "Also run the management recommendation pass")
		f.BoolVar(&opts.keepLabels, "keep-labels", false, "Keep labels from earlier runs on segments that cannot be classified")
	}
	if stages.Dams {
		f.Float64Var(&opts.snapTolerance, "snap-tolerance", config.DefaultSnapTolerance, "Maximum dam snap distance in meters")
	}
	return cmd
}

func writeSummary(stdout io.Writer, path string, sum *pipeline.Summary) error {
	if path == "" {
		return nil
	}

	var w io.Writer = stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create summary file: %w", err)
		}
		defer file.Close()
		w = file
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func initCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the feature store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync()

			n, err := a.InitStore(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve enriched segments and statistics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync()
			return a.Serve(cmd.Context())
		},
	}
}

func exportCmd(opts *options) *cobra.Command {
	var (
		format    string
		output    string
		direct    bool
		where     string
		hydrology bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the enriched network as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create file: %w", err)
				}
				defer file.Close()
				w = file
			}

			ctx := cmd.Context()
			if hydrology {
				return exportHydrology(ctx, a, w)
			}

			var src export.Source
			if direct {
				if a.Config().Store.Backend != config.BackendPostgres {
					return fmt.Errorf("--direct needs the postgres store backend")
				}
				pg, err := export.NewPostgresSource(ctx, a.Config().Store.ConnectionString)
				if err != nil {
					return err
				}
				defer pg.Close()
				pg.Where = where
				src = pg
			} else {
				fs, err := a.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer fs.Close()
				src = export.StoreSource{Store: fs}
			}

			_, err = export.New(log.Named("export")).Write(ctx, w, src, f)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&format, "format", "csv", "Export format: csv or json")
	fl.StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	fl.BoolVar(&direct, "direct", false, "Dump every column of the PostgreSQL segments table")
	fl.StringVar(&where, "where", "", "Optional WHERE clause for --direct exports")
	fl.BoolVar(&hydrology, "hydrology-table", false, "Write only the ReachID, baseflow and peakflow table as CSV")
	return cmd
}

func exportHydrology(ctx context.Context, a *app.App, w io.Writer) error {
	fs, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	cols, err := store.ResolveColumns(ctx, fs)
	if err != nil {
		return err
	}
	segments, err := fs.ReadSegments(ctx, store.Selector{Columns: cols})
	if err != nil {
		return err
	}
	_, err = export.WriteHydrologyTable(w, segments)
	return err
}
