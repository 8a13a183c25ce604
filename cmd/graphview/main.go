// Command graphview runs a headless graph session: it builds a small graph
// through the asynchronous API, runs a layout and writes the resulting
// state dump to stdout. Useful as a smoke test and as an example of the
// blocker/barrier calling conventions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hexaflow/graphview"
	"github.com/hexaflow/graphview/callback"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		optionsPath = flag.String("options", "", "path to a YAML graph options file")
		stylesPath  = flag.String("styles", "", "path to a YAML style catalog")
		layoutName  = flag.String("layout", graphview.LayoutStack, "layout to run before dumping")
		debug       = flag.Bool("debug", false, "probe the graph API before every call")
		timeout     = flag.Duration("timeout", 5*time.Second, "per-call wait budget")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	cfg := graphview.Config{Debug: *debug, Logger: logger}
	if *optionsPath != "" {
		data, err := os.ReadFile(*optionsPath)
		if err != nil {
			return err
		}
		if cfg.Options, err = graphview.LoadOptionsYAML(data); err != nil {
			return err
		}
	}
	if *stylesPath != "" {
		data, err := os.ReadFile(*stylesPath)
		if err != nil {
			return err
		}
		if cfg.Styles, err = graphview.LoadStylesYAML(data); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	widget, err := graphview.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = widget.Close() }()

	if err := widget.Load(); err != nil {
		return err
	}

	api := widget.API()
	wait := func(msg string) *callback.Blocker {
		return callback.NewBlocker(callback.WithTimeout(*timeout), callback.WithMessage(msg))
	}

	// Build a three-vertex chain, collecting the generated ids.
	barrier := callback.NewBarrier()
	for i, label := range []string{"source", "relay", "sink"} {
		slot, err := barrier.CreateStoredResult(label)
		if err != nil {
			return err
		}
		api.InsertVertex(slot.Completion(), float64(40+200*i), 40, 120, 60, label, nil)
	}

	crossed := wait("vertex insertion")
	barrier.Register(func() { _ = crossed.Invoke() })
	if err := barrier.Wait(); err != nil {
		return err
	}
	if err := crossed.Wait(); err != nil {
		return err
	}

	ids := make([]string, 0, 3)
	for _, key := range []string{"source", "relay", "sink"} {
		v, err := barrier.Result(key)
		if err != nil {
			return err
		}
		ids = append(ids, fmt.Sprint(v))
	}

	for i := 0; i+1 < len(ids); i++ {
		edge := wait("edge insertion")
		api.InsertEdge(edge.Completion(), ids[i], ids[i+1], fmt.Sprintf("hop %d", i+1), nil)
		if err := edge.Wait(); err != nil {
			return err
		}
	}

	layout := wait("layout run")
	api.RunLayout(layout.Completion(), *layoutName)
	if err := layout.Wait(); err != nil {
		return err
	}

	dump := wait("state dump")
	api.Dump(dump.Completion())
	if err := dump.Wait(); err != nil {
		return err
	}

	fmt.Println(dump.Arg(0))
	return nil
}
