package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiln/internal/diagfmt"
	"kiln/internal/driver"
	"kiln/internal/emit"
	"kiln/internal/layout"
	"kiln/internal/observ"
	"kiln/internal/project"
)

var (
	lowerTarget      string
	lowerJobs        int
	lowerJSON        bool
	lowerDump        bool
	lowerNoCache     bool
	lowerPoisonVPtrs bool
	lowerUIFlag      string
)

func init() {
	for _, c := range []*cobra.Command{lowerCmd, dumpCmd} {
		c.Flags().StringVar(&lowerTarget, "target", "", "target triple (e.g. x86_64-unknown-linux-gnu)")
		c.Flags().IntVar(&lowerJobs, "jobs", 0, "parallel unit workers (0 = one per CPU)")
		c.Flags().BoolVar(&lowerJSON, "json", false, "emit diagnostics as JSON")
		c.Flags().BoolVar(&lowerNoCache, "no-cache", false, "skip the on-disk unit cache")
		c.Flags().BoolVar(&lowerPoisonVPtrs, "poison-vptrs", false, "clobber vptrs in complete destructors")
	}
	lowerCmd.Flags().BoolVar(&lowerDump, "dump", false, "print the emitted module for each unit")
	lowerCmd.Flags().StringVar(&lowerUIFlag, "ui", "auto", "interactive progress (auto|on|off)")
}

var lowerCmd = &cobra.Command{
	Use:   "lower [unit files...]",
	Short: "Lower unit declarations to ABI artifacts",
	Long:  "Lower class hierarchy declarations to record layouts, dispatch tables, type descriptors, and structor bodies. Without arguments, units come from the kiln.toml manifest.",
	RunE:  runLower,
}

var dumpCmd = &cobra.Command{
	Use:   "dump [unit files...]",
	Short: "Lower units and print the emitted modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		lowerDump = true
		lowerUIFlag = "off"
		return runLower(cmd, args)
	},
}

func runLower(cmd *cobra.Command, args []string) error {
	timer := observ.NewTimer()

	collectPhase := timer.Begin("collect-units")
	paths, manifest, err := collectUnits(args)
	timer.End(collectPhase, fmt.Sprintf("%d units", len(paths)))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no unit files: pass paths or add [build].units to kiln.toml")
	}

	opts, err := buildOptions(manifest)
	if err != nil {
		return err
	}

	uiModeValue, err := readUIMode(lowerUIFlag)
	if err != nil {
		return err
	}
	useTUI := shouldUseTUI(uiModeValue) && !lowerJSON && !lowerDump

	lowerPhase := timer.Begin("lower")
	var results []driver.Result
	if useTUI {
		results, err = runLowerWithUI(cmd.Context(), "lowering units", paths, opts)
	} else {
		results, err = driver.LowerPaths(cmd.Context(), opts, paths)
	}
	timer.End(lowerPhase, "")
	if err != nil {
		return err
	}

	failed := reportResults(cmd, results)

	if timings, _ := cmd.Flags().GetBool("timings"); timings {
		fmt.Fprint(os.Stderr, timer.Summary())
	}
	if failed {
		return errors.New("lowering failed")
	}
	return nil
}

// collectUnits resolves unit paths from arguments or, when absent, from
// the nearest kiln.toml. The manifest also rides back so its build
// settings can seed defaults.
func collectUnits(args []string) ([]string, *project.Manifest, error) {
	manifestPath, ok, err := project.FindKilnToml(".")
	if err != nil {
		return nil, nil, err
	}
	var manifest *project.Manifest
	if ok {
		manifest, err = project.LoadManifest(manifestPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(args) > 0 {
		return args, manifest, nil
	}
	if manifest == nil {
		return nil, nil, nil
	}
	paths, err := manifest.UnitPaths()
	if err != nil {
		return nil, nil, err
	}
	return paths, manifest, nil
}

func buildOptions(manifest *project.Manifest) (driver.Options, error) {
	opts := driver.Options{
		Jobs:        lowerJobs,
		PoisonVPtrs: lowerPoisonVPtrs,
	}

	triple := lowerTarget
	useCache := !lowerNoCache
	if manifest != nil {
		if triple == "" {
			triple = manifest.Build.Target
		}
		if opts.Jobs == 0 {
			opts.Jobs = manifest.Build.Jobs
		}
		if manifest.Build.NoCache {
			useCache = false
		}
		opts.PoisonVPtrs = opts.PoisonVPtrs || manifest.Build.PoisonVPtrs
	}
	if triple != "" {
		target, ok := layout.ByTriple(triple)
		if !ok {
			return driver.Options{}, fmt.Errorf("unknown target triple %q", triple)
		}
		opts.Target = target
	}

	if useCache {
		cache, err := driver.OpenDiskCache("kiln")
		if err == nil {
			opts.Cache = cache
		}
	}
	return opts, nil
}

func reportResults(cmd *cobra.Command, results []driver.Result) (failed bool) {
	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	quiet, _ := cmd.Flags().GetBool("quiet")

	for _, r := range results {
		if r.Bag == nil {
			continue
		}
		r.Bag.Sort()
		if r.Bag.HasErrors() {
			failed = true
		}
		if r.Bag.Len() > 0 {
			if lowerJSON {
				_ = diagfmt.JSON(os.Stderr, r.Bag, r.Files, diagfmt.JSONOpts{
					IncludePositions: true,
					IncludeNotes:     true,
					Max:              maxDiags,
				})
			} else {
				diagfmt.Pretty(os.Stderr, r.Bag, r.Files, diagfmt.PrettyOpts{
					Color:     colorEnabled(cmd),
					ShowNotes: true,
				})
			}
		}
		if r.Module == nil {
			failed = true
			continue
		}
		if lowerDump {
			if err := emit.Dump(os.Stdout, r.Module); err != nil {
				failed = true
			}
		} else if !quiet && !lowerJSON {
			fmt.Fprintf(os.Stdout, "%s: %d globals, %d functions\n", r.Path, len(r.Module.Globals), len(r.Module.Funcs))
		}
	}
	return failed
}
