package main

import (
	"database/sql"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/cache"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/config"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/constraint"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/evaluate"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/logging"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/pruner"
)

// app holds the assembled collaborators for one CLI invocation.
type app struct {
	cfg     config.Config
	tree    *constraint.Container
	logDB   *sql.DB
	closers []io.Closer
}

func openApp(path string, logger *zap.Logger) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured (set model in config or FEASIBLE_MODEL)")
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	net, err := model.LoadFile(cfg.Model)
	if err != nil {
		return nil, err
	}
	logger.Debug("model loaded",
		zap.String("name", net.Name),
		zap.Int("layers", len(net.Layers)),
		zap.Int("prunable", net.PrunableCount()))

	var p pruner.Pruner
	switch cfg.Pruner.Kind {
	case "remote":
		timeout, _ := cfg.PrunerTimeout()
		rp, err := pruner.NewRemotePruner(cfg.Pruner.Addr, timeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rp)
		p = rp
	default:
		p = pruner.NewChannelPruner()
	}

	var c constraint.Cache
	switch cfg.Cache.Kind {
	case "memory":
		c = cache.NewMemory()
	case "sqlite":
		sc, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sc)
		c = sc
	}

	a.tree, err = cfg.BuildTree(config.Deps{Model: net, Pruner: p, Cache: c, Logger: logger})
	if err != nil {
		return nil, err
	}

	if cfg.LogDB != "" {
		db, err := logging.OpenDB(cfg.LogDB)
		if err != nil {
			return nil, err
		}
		a.logDB = db
		a.closers = append(a.closers, db)
	}

	ok = true
	return a, nil
}

// harness builds a batch harness that records decisions to the log db when configured.
func (a *app) harness(logger *zap.Logger) *evaluate.Harness {
	opts := []evaluate.Option{evaluate.WithLogger(logger)}
	if a.logDB != nil {
		db := a.logDB
		opts = append(opts, evaluate.WithSink(evaluate.SinkFunc(func(d evaluate.Decision) error {
			return logging.LogEvaluation(db, logging.EvaluationEntry{
				SessionID: d.SessionID,
				Solution:  d.Solution.Key(),
				Decision:  string(d.Action),
				Reason:    d.Reason,
				ElapsedUS: d.Elapsed.Microseconds(),
			})
		})))
	}
	return evaluate.NewHarness(a.tree, evaluate.Config{Workers: a.cfg.Workers}, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}
