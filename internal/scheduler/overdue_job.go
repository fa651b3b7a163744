package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ibizabroker/lms-backend/internal/borrowing"
	"github.com/ibizabroker/lms-backend/internal/users"
	"github.com/ibizabroker/lms-backend/pkg/config"
	"github.com/ibizabroker/lms-backend/pkg/db/models"
	"github.com/ibizabroker/lms-backend/pkg/logger"
	"github.com/ibizabroker/lms-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var (
	errInsufficientBalance = errors.New("balance cannot cover fine")
	errRecordStale         = errors.New("record left the borrowed state")
)

// OverdueJobParams configure the nightly overdue scan.
type OverdueJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Records borrowing.Repository
	Users   users.Repository
	Lending config.LendingConfig
	Metrics *metrics.SchedulerJobMetrics
}

// NewOverdueJob builds the job that fines and flags loans past their due date.
func NewOverdueJob(params OverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("borrow records repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &overdueJob{
		logg:    params.Logger,
		db:      params.DB,
		records: params.Records,
		users:   params.Users,
		lending: params.Lending,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type overdueJob struct {
	logg    *logger.Logger
	db      txRunner
	records borrowing.Repository
	users   users.Repository
	lending config.LendingConfig
	metrics *metrics.SchedulerJobMetrics
	now     func() time.Time
}

func (j *overdueJob) Name() string { return "overdue-scan" }

// Run selects every loan still BORROWED and past due, then settles each one
// in its own transaction. One bad record never aborts the rest of the scan.
func (j *overdueJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	records, err := j.records.FindDueBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("query overdue candidates: %w", err)
	}

	var errs []error
	fined, skipped := 0, 0
	for _, record := range records {
		err := j.fineRecord(ctx, now, record)
		switch {
		case err == nil:
			fined++
		case errors.Is(err, errInsufficientBalance):
			skipCtx := j.logg.WithFields(ctx, map[string]any{
				"record_id": record.ID.String(),
				"user_id":   record.UserID.String(),
			})
			j.logg.Warn(skipCtx, "balance cannot cover overdue fine; revisiting next run")
			skipped++
		case errors.Is(err, errRecordStale):
			skipped++
		default:
			errs = append(errs, fmt.Errorf("record %s: %w", record.ID, err))
		}
	}

	if j.metrics != nil {
		j.metrics.AddFined(j.Name(), fined)
		j.metrics.AddSkipped(j.Name(), skipped)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"selected": len(records),
		"fined":    fined,
		"skipped":  skipped,
	})
	j.logg.Info(logCtx, "overdue scan loop complete")
	return multierr.Combine(errs...)
}

// fineRecord debits the fine and flags the record atomically. The fine is
// recomputed from scratch each run, so a skipped patron pays the larger
// amount once the balance covers it.
func (j *overdueJob) fineRecord(ctx context.Context, now time.Time, record models.BorrowRecord) error {
	overdueDays := int(now.Sub(record.DueDate).Hours() / 24)
	if overdueDays < 0 {
		return nil
	}
	fine := decimal.NewFromInt(int64(overdueDays * j.lending.FinePerDay))

	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		usersTx := j.users.WithTx(tx)
		recordsTx := j.records.WithTx(tx)

		debited, err := usersTx.DebitBalance(ctx, record.UserID, fine)
		if err != nil {
			return fmt.Errorf("debit fine: %w", err)
		}
		if !debited {
			return errInsufficientBalance
		}

		flagged, err := recordsTx.MarkOverdue(ctx, record.ID, fine)
		if err != nil {
			return fmt.Errorf("mark overdue: %w", err)
		}
		if !flagged {
			// the loan was settled or flagged between select and update;
			// roll the debit back
			return errRecordStale
		}
		return nil
	})
}
