package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/retryme/backoff"
	"github.com/utkarsh5026/retryme/internal/config"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
)

// opResult captures how one simulated operation ended.
type opResult struct {
	ID       int
	Outcome  string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

type runFlags struct {
	ops         int
	workers     int
	failureRate float64
	latency     time.Duration
	seed        int64
	metricsAddr string
	noProgress  bool
}

// NewRunCmd creates the simulation command.
func NewRunCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Retry simulated flaky operations concurrently",
		Long: `Run a batch of simulated operations that fail at random. Each operation
gets its own backoff controller; a bounded number run at once. Press Ctrl-C to
cancel every pending retry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			flags.applyTo(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			reg := prometheus.NewRegistry()
			metrics := backoff.NewMetrics("retrydemo")
			if err := metrics.Register(reg); err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}
			if flags.metricsAddr != "" {
				shutdown, err := serveMetrics(flags.metricsAddr, reg)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			sim := &simulation{
				cfg:      cfg,
				seed:     flags.seed,
				logger:   opts.logger(cmd.ErrOrStderr()),
				metrics:  metrics.Named("simulation"),
				progress: !flags.noProgress,
				out:      cmd.ErrOrStderr(),
			}

			start := time.Now()
			results, err := sim.run(ctx)
			if err != nil {
				return err
			}
			return renderRun(cmd.OutOrStdout(), results, time.Since(start))
		},
	}

	cmd.Flags().IntVar(&flags.ops, "ops", 0, "number of operations (default from config)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "operations running at once (default from config)")
	cmd.Flags().Float64Var(&flags.failureRate, "failure-rate", 0, "probability each attempt fails (default from config)")
	cmd.Flags().DurationVar(&flags.latency, "latency", 0, "time each attempt takes (default from config)")
	cmd.Flags().Int64Var(&flags.seed, "seed", time.Now().UnixNano(), "random seed for failures")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "disable the progress bar")

	return cmd
}

// applyTo overrides configuration with flags the user set explicitly.
func (f *runFlags) applyTo(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("ops") {
		cfg.Sim.Operations = f.ops
	}
	if cmd.Flags().Changed("workers") {
		cfg.Sim.Workers = f.workers
	}
	if cmd.Flags().Changed("failure-rate") {
		cfg.Sim.FailureRate = f.failureRate
	}
	if cmd.Flags().Changed("latency") {
		cfg.Sim.Latency = f.latency
	}
}

type simulation struct {
	cfg      *config.Config
	seed     int64
	logger   *slog.Logger
	metrics  *backoff.Metrics
	progress bool
	out      io.Writer
}

func (s *simulation) run(ctx context.Context) ([]opResult, error) {
	n := s.cfg.Sim.Operations
	results := make([]opResult, n)

	var bar *progressbar.ProgressBar
	if s.progress {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription("Retrying operations"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Sim.Workers)

	var mu sync.Mutex
	for i := range n {
		g.Go(func() error {
			res := s.runOne(gctx, i)

			mu.Lock()
			results[i] = res
			mu.Unlock()

			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return results, nil
}

// runOne retries a single flaky operation until it succeeds, exhausts its
// retries or the run is cancelled.
func (s *simulation) runOne(ctx context.Context, id int) opResult {
	rng := rand.New(rand.NewSource(s.seed + int64(id))) // #nosec G404 -- simulated failures
	var attempts atomic.Int32

	opts := append(s.cfg.Options(),
		backoff.WithLogger(s.logger.With(slog.Int("op", id))),
		backoff.WithMetrics(s.metrics),
	)
	c := backoff.New[int](opts...)
	defer c.Close()

	res := opResult{ID: id}
	start := time.Now()

	_, ok, err := c.ExecuteWithBackoff(ctx,
		func(ctx context.Context) (int, error) {
			n := attempts.Add(1)
			if err := sleepCtx(ctx, s.cfg.Sim.Latency); err != nil {
				return 0, err
			}
			if rng.Float64() < s.cfg.Sim.FailureRate {
				return 0, fmt.Errorf("simulated failure on attempt %d", n)
			}
			return int(n), nil
		},
		func(int) { res.Outcome = outcomeSucceeded },
		func(err error, _ int) {
			res.Outcome = outcomeExhausted
			res.Err = err
		},
	)

	res.Elapsed = time.Since(start)
	res.Attempts = int(attempts.Load())
	switch {
	case err != nil:
		res.Outcome = outcomeExhausted
		res.Err = err
	case !ok && res.Outcome == "":
		res.Outcome = outcomeCancelled
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderRun(w io.Writer, results []opResult, total time.Duration) error {
	printSectionHeader(w, "SIMULATION RESULTS")

	table := tablewriter.NewWriter(w)
	table.Header("Op", "Outcome", "Attempts", "Elapsed", "Last Error")

	counts := map[string]int{}
	for _, r := range results {
		counts[r.Outcome]++

		lastErr := "-"
		if r.Err != nil {
			lastErr = truncate(r.Err.Error(), 48)
		}
		if err := table.Append(
			strconv.Itoa(r.ID),
			outcomeColor(r.Outcome).Sprint(r.Outcome),
			strconv.Itoa(r.Attempts),
			formatDelay(r.Elapsed),
			lastErr,
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d  %s %d  %s %d  in %s\n",
		green.Sprint(outcomeSucceeded+":"), counts[outcomeSucceeded],
		red.Sprint(outcomeExhausted+":"), counts[outcomeExhausted],
		yellow.Sprint(outcomeCancelled+":"), counts[outcomeCancelled],
		formatDelay(total))
	return nil
}

// serveMetrics exposes reg on addr until the returned shutdown is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
