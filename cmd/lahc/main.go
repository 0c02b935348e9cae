package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"binroute/internal/buildinfo"
	"binroute/internal/config"
	"binroute/internal/opt"
)

func main() {
	casesPath := flag.String("cases", config.Get("CASES_PATH", "configs/cases.yaml"), "YAML file of named distance matrices")
	caseName := flag.String("case", "test3", "case to solve")
	seed := flag.Int64("seed", 0, "random seed, 0 picks one from the clock")
	restarts := flag.Int("restarts", 1, "independent restarts run in parallel")
	history := flag.Int("history", opt.DefaultHistoryLength, "late-acceptance history length")
	maxIter := flag.Int("max-iterations", 0, "iteration cap per restart, 0 for none")
	budget := flag.Duration("time-budget", 0, "wall-clock cap per restart, 0 for none")
	lenient := flag.Bool("lenient", false, "skip stops that are neither a pending pickup nor a pending delivery")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	cases, err := config.LoadCases(*casesPath)
	if err != nil {
		log.Fatal(err)
	}
	m, err := cases.Get(*caseName)
	if err != nil {
		log.Fatalf("%v (available: %s)", err, strings.Join(cases.Names(), ", "))
	}

	mode := opt.ReplayStrict
	if *lenient {
		mode = opt.ReplayLenient
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	// Ctrl-C stops the search and still prints the best route so far
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := opt.Problem{
		Matrix:          m,
		HistoryLength:   *history,
		Replay:          mode,
		IterationsLimit: *maxIter,
		TimeBudget:      *budget,
	}
	res, all, err := opt.SolveParallel(ctx, p, *seed, *restarts)
	if err != nil {
		log.Fatal(err)
	}
	final, err := opt.Replay(m, res.Best.Stops, mode)
	if err != nil {
		log.Fatalf("best route does not replay: %v", err)
	}

	fmt.Printf("Original Path:\t%v\n", res.Initial.Stops)
	fmt.Printf("Original Cost:\t%g\n", res.Initial.Cost)
	fmt.Printf("Final Path:\t%v\n", res.Best.Stops)
	fmt.Printf("Final Cost:\t%g\n", final)

	var iters, evals int
	var dur time.Duration
	for _, mt := range all {
		iters += mt.Iterations
		evals += mt.Evaluations
		dur = max(dur, mt.Duration)
	}
	fmt.Printf("case=%s seed=%d restarts=%d winner=%d iterations=%d evaluations=%d stop=%s dur=%s\n",
		*caseName, *seed, len(all), res.Metrics.Restart, iters, evals, res.Metrics.StopReason, dur.Round(time.Millisecond))
}
