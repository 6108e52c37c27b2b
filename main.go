package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ostep-web/wserver/pkg/config"
	"github.com/ostep-web/wserver/pkg/logging"
	"github.com/ostep-web/wserver/pkg/logtail"
	"github.com/ostep-web/wserver/pkg/metrics"
	"github.com/ostep-web/wserver/pkg/request"
	"github.com/ostep-web/wserver/pkg/routing"
	"github.com/ostep-web/wserver/pkg/scheduling"
	"github.com/ostep-web/wserver/pkg/sockio"
)

// logTailCapacity is how many bytes of recent log output the debug
// listener can replay.
const logTailCapacity = 64 * 1024

var log = logrus.New()

// serverOptions collects the command-line state before it is resolved into
// an immutable configuration.
type serverOptions struct {
	// cfg receives the flag values bound directly to configuration fields.
	cfg *config.Config
	// disciplineName is the raw -s flag value.
	disciplineName string
}

// resolve validates the options and produces the final configuration.
func (o *serverOptions) resolve() (*config.Config, error) {
	discipline, err := scheduling.ParseDiscipline(o.disciplineName)
	if err != nil {
		return nil, err
	}
	o.cfg.Discipline = discipline
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return o.cfg, nil
}

func newRootCmd() (*cobra.Command, *serverOptions) {
	opts := &serverOptions{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:   "wserver",
		Short: "Multi-threaded HTTP/1.0 origin server with pluggable admission scheduling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.cfg.DocRoot, "docroot", "d", ".", "document root directory")
	flags.IntVarP(&opts.cfg.Port, "port", "p", config.DefaultPort, "listen port (0-65535)")
	flags.IntVarP(&opts.cfg.Workers, "threads", "t", config.DefaultWorkers, "number of worker threads")
	flags.IntVarP(&opts.cfg.QueueSlots, "buffers", "b", config.DefaultQueueSlots, "request queue capacity")
	flags.StringVarP(&opts.disciplineName, "schedalg", "s", "FIFO", "scheduling discipline (FIFO or SFF)")
	flags.StringVar(&opts.cfg.DebugAddr, "debug-addr", "", "optional listen address for the metrics/debug endpoint")
	return cmd, opts
}

func runServer(ctx context.Context, cfg *config.Config) error {
	tail := logtail.New(logTailCapacity)
	log.SetOutput(io.MultiWriter(os.Stderr, tail))

	if err := os.Chdir(cfg.DocRoot); err != nil {
		return fmt.Errorf("unable to enter document root: %w", err)
	}

	listener, err := sockio.Listen(cfg.Port)
	if err != nil {
		return err
	}

	tracker := metrics.NewTracker(logging.Component(log, "metrics"))
	handler := request.NewHandler(logging.Component(log, "request"), tracker)
	server := scheduling.NewServer(
		logging.Component(log, "scheduler"),
		listener,
		handler,
		tracker,
		cfg.Workers,
		cfg.QueueSlots,
		cfg.Discipline,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.DebugAddr != "" {
		startDebugListener(ctx, cfg.DebugAddr, tracker, tail)
	}

	log.Infof("Listening on port %d with %d threads, %d buffers, %s scheduling, root dir %s",
		cfg.Port, cfg.Workers, cfg.QueueSlots, cfg.Discipline, cfg.DocRoot)
	return server.Run(ctx)
}

// startDebugListener serves the metrics and log-tail endpoints on a side
// address. It is observability wiring only; the HTTP/1.0 data path never
// touches net/http.
func startDebugListener(ctx context.Context, addr string, tracker *metrics.Tracker, tail *logtail.Tail) {
	mux := routing.NewNormalizedServeMux()
	mux.Handle("/metrics", tracker)
	mux.HandleFunc("/debug/logs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(tail.Snapshot())
	})

	debugServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Debug endpoint enabled at http://%s/metrics", addr)
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Debug listener failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = debugServer.Close()
	}()
}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
