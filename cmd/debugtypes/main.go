// Command debugtypes walks an object's DWARF debug info and counts
// unique type definitions via the DWARF-4 type-signature algorithm
//.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/objtools/objtools/internal/cliutil"
	"github.com/objtools/objtools/internal/dwarftypes"
	"github.com/objtools/objtools/internal/objconfig"
	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objfile/elfdwarf"
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
		Name:      "debugtypes",
		Usage:     "count unique DWARF type definitions via the type-signature algorithm",
		Version:   version.Info(),
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"t"}},
			&cli.BoolFlag{Name: "no-progress"},
			&cli.StringFlag{Name: "count", Usage: "write JSON type-count summary to PATH"},
			&cli.StringFlag{Name: "contexts", Usage: "write JSON context-map dump to PATH"},
			&cli.StringFlag{Name: "config", Hidden: true},
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
	opts.NoProgress = opts.NoProgress || c.Bool("no-progress")
	if c.IsSet("count") {
		opts.CountPath = c.String("count")
	}
	if c.IsSet("contexts") {
		opts.ContextPath = c.String("contexts")
	}

	if err := objconfig.Validate(&opts); err != nil {
		return objerrors.NewConfigError("threads", fmt.Sprint(opts.Threads), err)
	}

	path := c.Args().First()
	if path == "" {
		return objerrors.NewConfigError("path", "", fmt.Errorf("exactly one input path is required"))
	}

	temp := tempdir.New()
	defer temp.Close()

	reporter := buildReporter(opts)
	reporter.Run()
	defer reporter.Close()

	state := dwarftypes.NewCountState()
	var totalDIEs uint64
	var contextsMu sync.Mutex
	var allContexts []dwarftypes.ContextEntry

	walker := walk.New(temp)

	items := make(chan walk.WorkItem, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		_, err := walker.Walk([]string{path}, func(item walk.WorkItem) error {
			reporter.TotalIncr(1)
			select {
			case items <- item:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return err
	})

	driver := &scanner.Driver{Threads: opts.Threads, Temp: temp}
	g.Go(func() error {
		return driver.Run(gctx, items, func(displayPath, diskPath string) error {
			defer reporter.CompletedIncr(1)
			return processObject(diskPath, state, &totalDIEs, opts.ContextPath != "", &contextsMu, &allContexts)
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	summary := state.Finalize(atomic.LoadUint64(&totalDIEs))
	if err := writeJSON(opts.CountPath, summary); err != nil {
		return objerrors.NewFatalIOError("write count", opts.CountPath, err)
	}
	if opts.ContextPath != "" {
		if err := writeJSON(opts.ContextPath, allContexts); err != nil {
			return objerrors.NewFatalIOError("write contexts", opts.ContextPath, err)
		}
	}
	return nil
}

// processObject runs the phase-1/phase-2 DWARF pipeline
// for one logical object: a context-build barrier across its compilation
// units, then a concurrent signature scan over every recorded type
// context.
func processObject(diskPath string, state *dwarftypes.CountState, totalDIEs *uint64, keepContexts bool, contextsMu *sync.Mutex, allContexts *[]dwarftypes.ContextEntry) error {
	provider, err := elfdwarf.Open(diskPath)
	if err != nil {
		return objerrors.NewSkipError("open object", diskPath, err)
	}
	cus, err := provider.CompilationUnits()
	if err != nil {
		return objerrors.NewSkipError("read compilation units", diskPath, err)
	}

	contexts := dwarftypes.NewContextMap()
	var phase1 errgroup.Group
	for _, cu := range cus {
		cu := cu
		phase1.Go(func() error {
			dwarftypes.BuildContext(cu, contexts)
			return nil
		})
	}
	if err := phase1.Wait(); err != nil {
		return err
	}

	snapshot, total := contexts.Snapshot()
	atomic.AddUint64(totalDIEs, total)

	var phase2 errgroup.Group
	for offset, tc := range snapshot {
		offset, tc := offset, tc
		phase2.Go(func() error {
			res, err := dwarftypes.ComputeSignature(provider, contexts, offset)
			if err != nil {
				return err
			}
			producer := ""
			if tc.Producer != nil {
				producer = *tc.Producer
			}
			state.Observe(res.Signature, producer)
			return nil
		})
	}
	if err := phase2.Wait(); err != nil {
		return err
	}

	if keepContexts {
		entries := dwarftypes.Entries(snapshot)
		contextsMu.Lock()
		*allContexts = append(*allContexts, entries...)
		contextsMu.Unlock()
	}
	return nil
}

func buildReporter(opts objconfig.Options) progress.Interface {
	if opts.NoProgress {
		return progress.Silent{}
	}
	return progress.New(os.Stderr, "scanning debug info")
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
