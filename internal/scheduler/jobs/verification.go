package jobs

import (
	"context"
	"fmt"

	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// Verifier scores matured runs against observed weather
type Verifier interface {
	VerifyDue(ctx context.Context, limit int) (int, error)
}

// VerificationJob scores stored runs whose forecast window has ended
type VerificationJob struct {
	verifier Verifier
	schedule string
	batch    int
	logger   *logger.Logger
}

// NewVerificationJob creates a new verification job
func NewVerificationJob(verifier Verifier, schedule string, batch int, log *logger.Logger) *VerificationJob {
	if schedule == "" {
		schedule = "0 0 7 * * *"
	}
	if batch <= 0 {
		batch = 50
	}
	return &VerificationJob{
		verifier: verifier,
		schedule: schedule,
		batch:    batch,
		logger:   log,
	}
}

// Name returns the job name
func (j *VerificationJob) Name() string {
	return "forecast_verification"
}

// Schedule returns the cron schedule
func (j *VerificationJob) Schedule() string {
	return j.schedule
}

// Run verifies up to batch due runs
func (j *VerificationJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled forecast verification")

	n, err := j.verifier.VerifyDue(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("verify due runs: %w", err)
	}

	if n > 0 {
		j.logger.WithField("verified", n).Info("Forecast verification completed")
	}
	return nil
}
