// Command andersen computes inclusion-based points-to sets, either for a
// constraint file or for Go packages.
//
// Usage:
//
//	andersen [flags] -constraints file
//	andersen [flags] package...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/config"
	"github.com/BarrensZeppelin/andersen/pkgutil"
	"github.com/BarrensZeppelin/andersen/ssagen"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"gopkg.in/yaml.v3"
)

var (
	configFile  = flag.String("config", "", "YAML config `file`")
	constraints = flag.String("constraints", "", "solve the constraints in `file` (- for stdin)")
	dir         = flag.String("dir", "", "alternative directory to run the go build tool in")
	format      = flag.String("format", "", "output format: text, yaml or json")
	debug       = flag.Bool("debug", false, "enable debug logging")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to `file`")
)

func main() {
	flag.Parse()

	cfg := config.NewDefault()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatal(err)
		}
	}
	if *debug {
		cfg.LogLevel = log.DebugLevel.String()
	}
	if *format != "" {
		cfg.Format = *format
	}
	if cfg.Format == "" {
		cfg.Format = config.FormatYAML
		if term.IsTerminal(int(os.Stdout.Fd())) {
			cfg.Format = config.FormatText
		}
	}

	logger := config.NewLogger(cfg)

	if *constraints == "" && flag.NArg() == 0 {
		logger.Fatal("Specify a constraint file or a package query on the command line")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logger.Fatal("could not create CPU profile: ", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Fatal("Failed to close", f)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		pts andersen.PointsToSets
		err error
	)
	if *constraints != "" {
		pts, err = solveFile(ctx, cfg, logger, *constraints)
	} else {
		pts, err = analyzePackages(ctx, cfg, logger, flag.Args())
	}
	if err != nil {
		logger.Error(err)
		return
	}

	if err := write(os.Stdout, cfg, pts); err != nil {
		logger.Error(err)
	}
}

func solveFile(ctx context.Context, cfg *config.Config, logger *log.Logger, filename string) (andersen.PointsToSets, error) {
	var r io.Reader = os.Stdin
	if filename != "-" {
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	cs, err := andersen.ParseConstraints(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	logger.WithField("constraints", cs.Len()).Info("Parsed constraints")

	pts, stats, err := cs.Solve(ctx, cfg.SolveConfig(logger))
	if err != nil {
		return nil, err
	}

	logger.WithField("variables", stats.Variables).Info("Solved constraints")
	return pts, nil
}

func analyzePackages(ctx context.Context, cfg *config.Config, logger *log.Logger, queries []string) (andersen.PointsToSets, error) {
	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode,
		Tests: true,
		Dir:   *dir,
	}, queries...)
	if err != nil {
		return nil, fmt.Errorf("loading packages failed: %w", err)
	}

	logger.Infof("Loaded %d packages", len(pkgs))

	prog, _ := pkgutil.BuildProgram(pkgs, ssa.InstantiateGenerics)

	logger.Info("Built packages")

	res, err := ssagen.Analyze(ctx, ssagen.Config{
		Program:     prog,
		Parallelism: cfg.Parallelism,
		Solver:      cfg.SolveConfig(logger),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"functions":   len(res.Reachable),
		"constraints": res.System.Len(),
		"callEdges":   countEdges(res),
	}).Info("Analysis done")

	return res.PointsToSets(), nil
}

func countEdges(res *ssagen.Result) int {
	edges := 0
	for _, n := range res.CallGraph().Nodes {
		edges += len(n.Out)
	}
	return edges
}

func write(w io.Writer, cfg *config.Config, pts andersen.PointsToSets) error {
	if cfg.SortOutput {
		pts = pts.Sorted()
	}

	switch cfg.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pts)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(map[andersen.Variable][]andersen.Variable(pts))
	default:
		_, err := io.WriteString(w, pts.String())
		return err
	}
}
