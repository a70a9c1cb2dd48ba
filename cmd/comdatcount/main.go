// Command comdatcount aggregates duplicated link-once (COMDAT) groups
// across a tree of object files, archives, and zip containers, emitting
// a wasted-bytes report.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/objtools/objtools/internal/cliutil"
	"github.com/objtools/objtools/internal/comdat"
	"github.com/objtools/objtools/internal/objconfig"
	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objfile/elfdwarf"
	"github.com/objtools/objtools/internal/objlog"
	"github.com/objtools/objtools/internal/progress"
	"github.com/objtools/objtools/internal/scanner"
	"github.com/objtools/objtools/internal/tempdir"
	"github.com/objtools/objtools/internal/version"
	"github.com/objtools/objtools/internal/walk"
)

func main() {
	args, err := cliutil.ExpandResponseFiles(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:      "comdatcount",
		Usage:     "aggregate duplicated COMDAT groups across object files",
		Version:   version.Info(),
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"t"}, Usage: "worker count, default hardware concurrency"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "-", Usage: "output path, - for stdout"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
			&cli.StringFlag{Name: "config", Usage: "optional TOML defaults file"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "glob pattern to exclude from the walk"},
			&cli.StringFlag{Name: "response-file", Hidden: true},
		},
		Action: run,
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	opts, err := objconfig.Load(c.String("config"))
	if err != nil {
		return objerrors.NewConfigError("config", c.String("config"), err)
	}
	if c.IsSet("threads") {
		opts.Threads = c.Int("threads")
	}
	if c.IsSet("output") {
		opts.Output = c.String("output")
	}
	opts.Quiet = opts.Quiet || c.Bool("quiet")
	opts.Verbose = opts.Verbose || c.Bool("verbose")
	opts.Exclude = append(opts.Exclude, c.StringSlice("exclude")...)

	if err := objconfig.Validate(&opts); err != nil {
		return objerrors.NewConfigError("threads", fmt.Sprint(opts.Threads), err)
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		return objerrors.NewConfigError("paths", "", fmt.Errorf("at least one input path is required"))
	}

	objlog.SetQuiet(opts.Quiet)
	objlog.SetVerbose(opts.Verbose)

	out, closeOut, err := openOutput(opts.Output)
	if err != nil {
		return objerrors.NewFatalIOError("open output", opts.Output, err)
	}
	defer closeOut()

	temp := tempdir.New()
	defer temp.Close()

	agg := comdat.NewAggregator()
	digests := comdat.NewDigestAggregator()

	reporter := buildReporter(opts)
	reporter.Run()
	defer reporter.Close()

	walker := walk.New(temp)
	walker.Exclude = opts.Exclude

	items := make(chan walk.WorkItem, 1024)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		_, err := walker.Walk(paths, func(item walk.WorkItem) error {
			reporter.TotalIncr(1)
			select {
			case items <- item:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		if err != nil && err != context.Canceled {
			objlog.Fatal("%v", err)
		}
		return err
	})

	driver := &scanner.Driver{Threads: opts.Threads, Temp: temp}
	g.Go(func() error {
		return driver.Run(gctx, items, func(displayPath, diskPath string) error {
			defer reporter.CompletedIncr(1)
			provider, err := elfdwarf.Open(diskPath)
			if err != nil {
				return objerrors.NewSkipError("open object", displayPath, err)
			}
			return comdat.ScanObject(provider, agg, digests)
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	report := comdat.Build(agg.Snapshot(), digests.Finalize())
	return comdat.Write(out, report, opts.Verbose)
}

func buildReporter(opts objconfig.Options) progress.Interface {
	if opts.NoProgress || opts.Quiet {
		return progress.Silent{}
	}
	return progress.New(os.Stderr, "scanning object files")
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { f.Close() }, nil
}
