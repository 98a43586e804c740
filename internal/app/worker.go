package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/jobs"
)

// ImportJobHandler runs queued imports through the pipeline. Files that
// cannot be read or mapped fail at once; other errors are retried.
func (a *App) ImportJobHandler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := a.Log.With().
			Str("job_id", importJob.JobID).
			Str("user_id", importJob.UserID).
			Str("gcs_uri", importJob.GCSURI).
			Logger()
		log.Info().Int("attempt", importJob.RetryCount+1).Msg("Processing import job")

		report, err := a.Importer.Import(ctx, importJob.Request())
		importJob.Report = &report
		if report.Inserted > 0 && a.Cache != nil {
			a.Cache.Invalidate(importJob.UserID)
		}
		if err != nil {
			log.Error().Err(err).Msg("Import job failed")
			if errors.Is(err, domain.ErrUnreadableFile) || errors.Is(err, domain.ErrColumnMappingFailed) {
				return jobs.Permanent(err)
			}
			return err
		}

		log.Info().
			Int("parsed", report.Parsed).
			Int("inserted", report.Inserted).
			Int("duplicates", report.Duplicates).
			Msg("Import job completed")
		return nil
	}
}
