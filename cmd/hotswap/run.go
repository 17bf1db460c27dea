package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/hotswap/metrics"
	"github.com/wippyai/hotswap/watch"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Load a module and run it, reloading on rebuild",
		ArgsUsage: "[module]",
		Flags:     runFlags(),
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	interactive := c.Bool("interactive")
	if interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal on stdout")
	}

	var (
		log      *zap.Logger
		pane     *logPane
		guestOut io.Writer = os.Stderr
	)
	if interactive {
		pane = newLogPane(200)
		guestOut = pane
		log, err = cfg.Log.BuildWriter(pane)
	} else {
		log, err = cfg.Log.Build()
	}
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newSession(ctx, cfg, log, guestOut)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			log.Warn("close session", zap.Error(err))
		}
	}()

	log.Info("module running",
		zap.String("module", cfg.Module.Path),
		zap.String("backend", cfg.Module.Backend),
		zap.Duration("step", cfg.Loop.Step))

	var w *watch.Watcher
	if cfg.Reload.Watch {
		w, err = watch.New(cfg.Module.Path, func(string) { s.mgr.RequestReload() },
			watch.WithLogger(log.Named("watch")))
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })

	if w != nil {
		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, s.registry, log.Named("metrics")) })
	}

	g.Go(func() error { return reloadOnHangup(gctx, s) })

	if interactive {
		g.Go(func() error {
			defer cancel()
			return runInteractive(gctx, s, pane)
		})
	}

	err = g.Wait()
	if !interactive {
		st := s.Stats()
		fmt.Fprintf(os.Stdout, "ticks=%d reloads=%d state=%s\n", st.Ticks, st.Reloads, st.State)
	}
	return err
}

// reloadOnHangup treats SIGHUP as a reload request.
func reloadOnHangup(ctx context.Context, s *session) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			s.log.Info("SIGHUP received, reload requested")
			s.mgr.RequestReload()
		}
	}
}
