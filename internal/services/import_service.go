// Package services orchestrates imports between a source, the local ledger,
// the queue and Firefly III.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fireflyiii/internal/amqp"
	"fireflyiii/internal/core"
	applog "fireflyiii/internal/log"
	"fireflyiii/internal/storage"
	"fireflyiii/pkg/firefly"
)

// Ledger is the subset of the import ledger the service uses.
type Ledger interface {
	RecordPending(ctx context.Context, id, externalID string, payload []byte) (storage.Import, bool, error)
	GetImport(ctx context.Context, id string) (storage.Import, error)
	MarkStored(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkRetry(ctx context.Context, id, reason string) error
	ListPending(ctx context.Context, limit int) ([]storage.Import, error)
}

// Publisher hands a recorded import to the worker.
type Publisher interface {
	PublishImport(ctx context.Context, msg *amqp.ImportMessage) error
}

// Recorder observes final import outcomes ("stored", "failed", "duplicate",
// "retry", "invalid").
type Recorder interface {
	RecordImport(status string)
}

var (
	_ Ledger    = (*storage.SQLiteRepository)(nil)
	_ Publisher = (*amqp.Client)(nil)
)

// ImportConfig holds the defaults applied to every imported expense and the
// flags sent with each store call.
type ImportConfig struct {
	DefaultSource    string
	DefaultCurrency  string
	ApplyRules       bool
	FireWebhooks     bool
	ErrorIfDuplicate bool
	// MaxAttempts bounds transport retries before a row is marked failed.
	MaxAttempts int
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		ApplyRules:       true,
		FireWebhooks:     true,
		ErrorIfDuplicate: true,
		MaxAttempts:      5,
	}
}

// ImportResult counts what Import did with each expense.
type ImportResult struct {
	Recorded   int // new ledger rows
	Duplicates int // already stored or failed earlier
	Queued     int
	Stored     int
	Failed     int
	Pending    int // left for the next drain
	Invalid    []error
}

// DrainResult counts the outcome of one DrainPending pass.
type DrainResult struct {
	Stored  int
	Failed  int
	Retried int
}

// Import outcome labels passed to the Recorder.
const (
	OutcomeStored    = "stored"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeRetry     = "retry"
	OutcomeInvalid   = "invalid"
)

type ImportService struct {
	ledger    Ledger
	firefly   firefly.Transactions
	publisher Publisher
	recorder  Recorder
	cfg       ImportConfig
	logger    *applog.Logger
	newID     func() string
}

type Option func(*ImportService)

// WithPublisher switches Import to queue mode.
func WithPublisher(p Publisher) Option {
	return func(s *ImportService) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *ImportService) { s.recorder = r }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ImportService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewImportService(ledger Ledger, ff firefly.Transactions, cfg ImportConfig, opts ...Option) *ImportService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	s := &ImportService{
		ledger:  ledger,
		firefly: ff,
		cfg:     cfg,
		logger:  applog.Default(applog.ComponentImport),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import records every expense in the ledger and then either queues it or
// stores it right away. Expenses already stored or failed are skipped, so
// running the same batch twice is safe. The error is non-nil only when the
// ledger itself fails.
func (s *ImportService) Import(ctx context.Context, expenses []core.Expense) (ImportResult, error) {
	var res ImportResult

	for i, e := range expenses {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tx, err := e.ToTransaction(s.cfg.DefaultSource, s.cfg.DefaultCurrency)
		if err != nil {
			res.Invalid = append(res.Invalid, fmt.Errorf("expense %d (%s): %w", i+1, e.Description, err))
			s.record(OutcomeInvalid)
			continue
		}
		payload, err := json.Marshal(tx)
		if err != nil {
			return res, fmt.Errorf("encode transaction: %w", err)
		}

		imp, created, err := s.ledger.RecordPending(ctx, s.newID(), tx.ExternalID, payload)
		if err != nil {
			return res, fmt.Errorf("record import: %w", err)
		}
		if created {
			res.Recorded++
		} else if imp.Status != storage.StatusPending {
			res.Duplicates++
			s.record(OutcomeDuplicate)
			continue
		}

		if s.publisher != nil {
			msg := amqp.NewImportMessage(imp.ID, imp.ExternalID)
			if err := s.publisher.PublishImport(ctx, msg); err != nil {
				s.logger.WarnContext(ctx, "Publish failed, import left for the drain",
					applog.FieldOperation, applog.OpPublish,
					applog.FieldImportID, imp.ID,
					applog.FieldError, err)
				res.Pending++
				continue
			}
			res.Queued++
			continue
		}

		switch err := s.StoreOne(ctx, imp.ID); {
		case err == nil:
			res.Stored++
		case firefly.IsTransportError(err):
			res.Pending++
		default:
			res.Failed++
		}
	}

	s.logger.InfoContext(ctx, "Import batch processed",
		"recorded", res.Recorded,
		"duplicates", res.Duplicates,
		"queued", res.Queued,
		"stored", res.Stored,
		"failed", res.Failed,
		"pending", res.Pending,
		"invalid", len(res.Invalid))
	return res, nil
}

// StoreOne sends one pending ledger row to Firefly III and records the
// outcome. Rows that are no longer pending are left alone. A transport error
// keeps the row pending until MaxAttempts is reached and is returned so that
// callers can retry later; any other failure is final.
func (s *ImportService) StoreOne(ctx context.Context, importID string) error {
	imp, err := s.ledger.GetImport(ctx, importID)
	if err != nil {
		return fmt.Errorf("load import: %w", err)
	}
	if imp.Status != storage.StatusPending {
		s.logger.DebugContext(ctx, "Import already settled", applog.FieldImportID, imp.ID, applog.FieldStatus, imp.Status)
		return nil
	}

	var tx firefly.Transaction
	if err := json.Unmarshal(imp.Payload, &tx); err != nil {
		reason := fmt.Sprintf("decode payload: %v", err)
		if merr := s.ledger.MarkFailed(ctx, imp.ID, reason); merr != nil {
			return s.markError(ctx, imp.ID, "mark failed", merr)
		}
		s.record(OutcomeFailed)
		return errors.New(reason)
	}

	_, err = s.firefly.StoreTransaction(ctx, firefly.StoreTransactionParams{
		ErrorIfDuplicateHash: s.cfg.ErrorIfDuplicate,
		ApplyRules:           s.cfg.ApplyRules,
		FireWebhooks:         s.cfg.FireWebhooks,
		Transactions:         []firefly.Transaction{tx},
	})

	switch {
	case err == nil, isDuplicateError(err):
		if merr := s.ledger.MarkStored(ctx, imp.ID); merr != nil {
			return s.markError(ctx, imp.ID, "mark stored", merr)
		}
		s.record(OutcomeStored)
		s.logger.InfoContext(ctx, "Transaction stored",
			applog.FieldImportID, imp.ID,
			applog.FieldExternalID, imp.ExternalID,
			applog.FieldAmount, tx.Amount.StringFixed(2))
		return nil

	case firefly.IsTransportError(err) && imp.Attempts+1 < s.cfg.MaxAttempts:
		if merr := s.ledger.MarkRetry(ctx, imp.ID, err.Error()); merr != nil {
			return s.markError(ctx, imp.ID, "mark retry", merr)
		}
		s.record(OutcomeRetry)
		return fmt.Errorf("store transaction: %w", err)

	default:
		if merr := s.ledger.MarkFailed(ctx, imp.ID, err.Error()); merr != nil {
			return s.markError(ctx, imp.ID, "mark failed", merr)
		}
		s.record(OutcomeFailed)
		s.logger.LogError(ctx, "Transaction rejected", err, applog.OpStore,
			applog.FieldImportID, imp.ID,
			applog.FieldAttempts, imp.Attempts+1)
		if firefly.IsTransportError(err) {
			// Final: do not let callers treat it as retryable.
			return fmt.Errorf("store transaction: giving up after %d attempts: %v", imp.Attempts+1, err)
		}
		return fmt.Errorf("store transaction: %w", err)
	}
}

// DrainPending stores up to limit pending rows, oldest first. It stops early
// on a transport error since the remaining rows would fail the same way.
func (s *ImportService) DrainPending(ctx context.Context, limit int) (DrainResult, error) {
	var res DrainResult

	pending, err := s.ledger.ListPending(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}

	for _, imp := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := s.StoreOne(ctx, imp.ID)
		switch {
		case err == nil:
			res.Stored++
		case firefly.IsTransportError(err):
			res.Retried++
			s.logger.WarnContext(ctx, "Firefly III unreachable, stopping drain", applog.FieldOperation, applog.OpDrain, applog.FieldError, err)
			return res, nil
		default:
			res.Failed++
		}
	}
	return res, nil
}

func (s *ImportService) record(status string) {
	if s.recorder != nil {
		s.recorder.RecordImport(status)
	}
}

// isDuplicateError reports Firefly's rejection of a transaction whose hash
// already exists, which means an earlier attempt went through.
func isDuplicateError(err error) bool {
	var apiErr *firefly.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 422 && strings.Contains(apiErr.Body, "Duplicate of transaction")
}

// markError treats a row settled by a concurrent consumer as done.
func (s *ImportService) markError(ctx context.Context, id, op string, err error) error {
	if errors.Is(err, storage.ErrAlreadySettled) {
		s.logger.DebugContext(ctx, "Import settled concurrently", applog.FieldImportID, id)
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
