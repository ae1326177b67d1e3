package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fireflyiii/internal/amqp"
	applog "fireflyiii/internal/log"
	"fireflyiii/internal/services"
	"fireflyiii/internal/storage"
)

// Consumer delivers queued import messages.
type Consumer interface {
	ConsumeImports(ctx context.Context, handler amqp.Handler) error
}

// Storer sends ledger rows to Firefly III.
type Storer interface {
	StoreOne(ctx context.Context, importID string) error
	DrainPending(ctx context.Context, limit int) (services.DrainResult, error)
}

// LedgerCounter reports ledger row counts for the metrics gauge.
type LedgerCounter interface {
	CountByStatus(ctx context.Context) (map[storage.ImportStatus]int64, error)
}

// Metrics is the part of the metrics recorder the worker drives.
type Metrics interface {
	SetLedgerRows(counts map[string]int64)
	Handler() http.Handler
}

var (
	_ Consumer      = (*amqp.Client)(nil)
	_ Storer        = (*services.ImportService)(nil)
	_ LedgerCounter = (*storage.SQLiteRepository)(nil)
)

type Config struct {
	BatchSize   int
	Interval    time.Duration
	MetricsAddr string
}

// ImportWorker stores queued imports and periodically drains ledger rows the
// queue never delivered.
type ImportWorker struct {
	consumer Consumer
	storer   Storer
	counter  LedgerCounter
	metrics  Metrics
	cfg      Config
	logger   *applog.Logger
}

// NewImportWorker builds a worker. consumer, counter and metrics may be nil:
// without a consumer only the periodic drain runs.
func NewImportWorker(consumer Consumer, storer Storer, counter LedgerCounter, metrics Metrics, cfg Config, logger *applog.Logger) *ImportWorker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentWorker)
	}
	return &ImportWorker{
		consumer: consumer,
		storer:   storer,
		counter:  counter,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleImportMessage stores the ledger row named by msg.
func (w *ImportWorker) HandleImportMessage(ctx context.Context, msg *amqp.ImportMessage) error {
	w.logger.InfoContext(ctx, "Processing import message",
		applog.FieldImportID, msg.ImportID,
		applog.FieldExternalID, msg.ExternalID)

	if err := w.storer.StoreOne(ctx, msg.ImportID); err != nil {
		return fmt.Errorf("store import %s: %w", msg.ImportID, err)
	}
	return nil
}

// Run blocks until ctx is cancelled or one of its loops fails. A cancelled
// context is a clean shutdown and returns nil.
func (w *ImportWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Performing startup drain")
	w.drain(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeImports(gctx, w.HandleImportMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume imports: %w", err)
			}
			return nil
		})
	} else {
		w.logger.InfoContext(ctx, "No queue configured, relying on periodic drain")
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				w.drain(gctx)
			}
		}
	})

	if w.metrics != nil && w.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              w.cfg.MetricsAddr,
			Handler:           w.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			w.logger.InfoContext(ctx, "Serving metrics", "addr", w.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (w *ImportWorker) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.metrics.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	return mux
}

// drain runs one DrainPending pass and refreshes the ledger gauge. Errors are
// logged; the next tick tries again.
func (w *ImportWorker) drain(ctx context.Context) {
	res, err := w.storer.DrainPending(ctx, w.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.LogError(ctx, "Periodic drain failed", err, applog.OpDrain)
		}
		return
	}
	if res.Stored+res.Failed+res.Retried > 0 {
		w.logger.InfoContext(ctx, "Drained pending imports",
			applog.FieldOperation, applog.OpDrain,
			"stored", res.Stored,
			"failed", res.Failed,
			"retried", res.Retried)
	}
	w.refreshGauge(ctx)
}

func (w *ImportWorker) refreshGauge(ctx context.Context) {
	if w.counter == nil || w.metrics == nil {
		return
	}
	counts, err := w.counter.CountByStatus(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Count ledger rows failed", applog.FieldError, err)
		return
	}
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	w.metrics.SetLedgerRows(out)
}
