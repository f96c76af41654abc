// Package app runs the customer job inside an fx application.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/csvload/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/csvload/pkg/batch/core/application/usecase"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/job"
	inframetrics "github.com/tigerroll/csvload/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// RunOptions selects how the job is launched.
type RunOptions struct {
	// Restart resumes the latest instance instead of starting a new one.
	Restart bool
}

// jobOutcome carries the result of the job goroutine back to RunApplication.
type jobOutcome struct {
	done      chan struct{}
	once      sync.Once
	execution *model.JobExecution
	err       error
}

func newJobOutcome() *jobOutcome {
	return &jobOutcome{done: make(chan struct{})}
}

func (o *jobOutcome) finish(je *model.JobExecution, err error) {
	o.once.Do(func() {
		o.execution, o.err = je, err
		close(o.done)
	})
}

// RunApplication starts the application, runs the customer job once and
// stops the application again. Cancelling appCtx stops the job after its
// current chunk. The returned execution is nil when the job could not be launched.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, opts RunOptions, extra ...fx.Option) (*model.JobExecution, error) {
	outcome := newJobOutcome()

	app := fx.New(
		logger.Module,
		fx.Supply(
			embeddedConfig,
			opts,
			outcome,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),
		config.Module,
		inframetrics.Module,
		migration.Module,
		Module,
		fx.Options(extra...),
		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags(``, ``, ``, ``, ``, `name:"appCtx"`))),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return nil, err
	}

	<-outcome.done

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	var result error
	if outcome.err != nil {
		result = multierror.Append(result, outcome.err)
	}
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Failed to stop application: %v", err)
		result = multierror.Append(result, err)
	}
	return outcome.execution, result
}

// startJobExecution launches the job once every other OnStart hook (migrations,
// metrics server) has run. The job runs in its own goroutine so that start-up
// is not bound by the start timeout.
func startJobExecution(
	lc fx.Lifecycle,
	operator *usecase.DefaultJobOperator,
	customerJob *job.SimpleJob,
	opts RunOptions,
	outcome *jobOutcome,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				var (
					je  *model.JobExecution
					err error
				)
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in job execution: %v", r)
						err = multierror.Append(err, fmt.Errorf("panic in job execution: %v", r))
					}
					outcome.finish(je, err)
				}()

				if opts.Restart {
					logger.Infof("Restarting the latest instance of job '%s'...", customerJob.JobName())
					je, err = operator.Restart(appCtx, customerJob)
				} else {
					logger.Infof("Starting a new instance of job '%s'...", customerJob.JobName())
					je, err = operator.StartNextInstance(appCtx, customerJob)
				}
				if err != nil {
					logger.Errorf("Failed to launch job '%s': %v", customerJob.JobName(), err)
					return
				}
				logger.Infof("Job '%s' (Execution ID: %s, run %d) finished with status %s, exit status %s.",
					customerJob.JobName(), je.ID, je.RunID, je.Status, je.ExitStatus)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application stopping.")
			return nil
		},
	})
}
