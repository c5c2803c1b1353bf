package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/audit"
	"github.com/ksasa/router/internal/codec"
	"github.com/ksasa/router/internal/config"
	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/gate"
	"github.com/ksasa/router/internal/hitl"
	"github.com/ksasa/router/internal/lesson"
	"github.com/ksasa/router/internal/logging"
	"github.com/ksasa/router/internal/orchestrator"
	"github.com/ksasa/router/internal/server"
	"github.com/ksasa/router/internal/store"
	"github.com/ksasa/router/internal/telemetry"
)

// #region app
// app holds every long-lived component of a running router.
type app struct {
	store        *store.Store
	codec        *codec.CodecClient
	sink         *audit.Sink
	evidence     *evidence.Store
	orchestrator *orchestrator.Orchestrator
	ledger       *hitl.Ledger
	gate         *gate.Gate
	metrics      *telemetry.Metrics
	telemetry    *telemetry.Log
}

// openLedger opens the SQLite store and restores the ledger from it. Audit
// events are appended to the audit log and mirrored into the store.
func openLedger(ctx context.Context, cfg config.Config) (*store.Store, *audit.Sink, *hitl.Ledger, error) {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	sink := audit.NewSink(cfg.AuditDir, audit.AuditFile).WithMirror(st)
	ledger := hitl.NewLedger(sink, st)
	if _, err := ledger.Restore(ctx); err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return st, sink, ledger, nil
}

// buildApp assembles the router from cfg.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logging.New("wire")
	a := &app{gate: gate.NewGate(cfg.Gate), telemetry: telemetry.NewLog(cfg.AuditDir)}

	var err error
	a.store, a.sink, a.ledger, err = openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		gen      lesson.Generator
		embedder evidence.Embedder
	)
	if cfg.CodecAddr != "" {
		a.codec, err = codec.NewCodecClient(cfg.CodecAddr, cfg.Codec)
		if err != nil {
			a.Close()
			return nil, err
		}
		gen, embedder = a.codec, a.codec
		log.Info("codec configured", "addr", cfg.CodecAddr)
	} else {
		log.Info("no codec configured; template lesson plans and lexical retrieval only")
	}

	a.evidence = evidence.NewStore(cfg.Evidence, embedder)
	if err := a.evidence.Build(ctx, cfg.SeedDir); err != nil {
		a.Close()
		return nil, fmt.Errorf("build evidence store: %w", err)
	}
	log.Info("evidence store ready", "fragments", a.evidence.Len(), "mode", a.evidence.Mode())

	opts := adapter.Options{
		Retriever:  a.evidence,
		Policy:     cfg.Confidence,
		TopK:       cfg.Evidence.TopK,
		SnippetLen: cfg.Evidence.SnippetLen,
	}
	a.orchestrator = orchestrator.New()
	a.orchestrator.Register(orchestrator.DomainEducation, adapter.NewEducation(opts, lesson.NewPlanner(gen)))
	a.orchestrator.Register(orchestrator.DomainHealth, adapter.NewHealth(opts))
	a.orchestrator.Register(orchestrator.DomainGovernance, adapter.NewGovernance(opts))

	a.metrics, err = telemetry.NewMetrics(nil)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) server(staticDir string) *server.Server {
	return server.New(server.Deps{
		Orchestrator: a.orchestrator,
		Ledger:       a.ledger,
		Gate:         a.gate,
		Metrics:      a.metrics,
		Audit:        a.sink,
		Telemetry:    a.telemetry,
		StaticDir:    staticDir,
	})
}

// Close releases the codec connection and the database.
func (a *app) Close() error {
	var errs []error
	if a.codec != nil {
		errs = append(errs, a.codec.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// #endregion app
