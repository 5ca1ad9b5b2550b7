package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/certificates"
	"certificate-studio/generator-backend/internal/templates"
)

// Generator produces one certificate.
type Generator interface {
	Generate(ctx context.Context, req *templates.GenerationRequest) (*certificates.GenerationResult, error)
}

// Outcome is the result for one recipient row.
type Outcome struct {
	Row            int      `json:"row"`
	Code           string   `json:"code"`
	FileName       string   `json:"file_name"`
	Location       string   `json:"location"`
	DecodeFailures int      `json:"decode_failures"`
	Unbound        []string `json:"unbound,omitempty"`
	Err            error    `json:"-"`
}

// Status is "ok" or "failed".
func (o Outcome) Status() string {
	if o.Err != nil {
		return "failed"
	}
	return "ok"
}

// Error returns the failure message, empty on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report summarizes a batch run. Outcomes are in recipient order.
type Report struct {
	Outcomes  []Outcome     `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// RunnerConfig holds batch configuration
type RunnerConfig struct {
	MaxConcurrent   int
	IncludeMetadata bool
}

// DefaultRunnerConfig returns default configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxConcurrent:   4,
		IncludeMetadata: false,
	}
}

// Runner generates certificates for a list of recipients
type Runner struct {
	generator Generator
	sink      Sink
	config    RunnerConfig
	logger    *zap.Logger
}

// NewRunner creates a new batch runner
func NewRunner(generator Generator, sink Sink, config RunnerConfig, logger *zap.Logger) *Runner {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &Runner{
		generator: generator,
		sink:      sink,
		config:    config,
		logger:    logger,
	}
}

// Run generates one certificate per recipient. A failing row is recorded in
// its Outcome and does not stop the others. Run returns an error only when
// ctx ends; the partial report is returned with it.
func (r *Runner) Run(ctx context.Context, tpl *templates.Template, recipients []Recipient) (*Report, error) {
	start := time.Now()
	report := &Report{Outcomes: make([]Outcome, len(recipients))}

	r.logger.Info("Starting batch generation",
		zap.Int("recipients", len(recipients)),
		zap.Int("max_concurrent", r.config.MaxConcurrent),
	)

	sem := make(chan struct{}, r.config.MaxConcurrent)
	for i, recipient := range recipients {
		if ctx.Err() != nil {
			report.Outcomes[i] = Outcome{Row: recipient.Row, Code: recipient.Code, Err: ctx.Err()}
			continue
		}

		sem <- struct{}{} // Acquire semaphore

		go func(i int, recipient Recipient) {
			defer func() { <-sem }() // Release semaphore

			report.Outcomes[i] = r.generateOne(ctx, tpl, recipient)
		}(i, recipient)
	}

	// Wait for all goroutines to complete
	for i := 0; i < cap(sem); i++ {
		sem <- struct{}{}
	}

	for _, o := range report.Outcomes {
		if o.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	report.Elapsed = time.Since(start)

	r.logger.Info("Batch generation finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch canceled: %w", err)
	}
	return report, nil
}

func (r *Runner) generateOne(ctx context.Context, tpl *templates.Template, recipient Recipient) Outcome {
	outcome := Outcome{Row: recipient.Row, Code: recipient.Code}

	result, err := r.generator.Generate(ctx, &templates.GenerationRequest{
		Template:        tpl,
		FieldValues:     recipient.Values,
		IncludeMetadata: r.config.IncludeMetadata,
		Code:            recipient.Code,
	})
	if err != nil {
		outcome.Err = err
		r.logRowFailure(recipient, "generate", err)
		return outcome
	}

	outcome.Code = result.Code
	outcome.FileName = result.FileName
	outcome.DecodeFailures = len(result.Failures)
	outcome.Unbound = result.Unbound

	location, err := r.sink.Put(ctx, result)
	if err != nil {
		outcome.Err = err
		r.logRowFailure(recipient, "store", err)
		return outcome
	}
	outcome.Location = location
	return outcome
}

func (r *Runner) logRowFailure(recipient Recipient, stage string, err error) {
	level := r.logger.Error
	if errors.Is(err, context.Canceled) {
		level = r.logger.Warn
	}
	level("Failed to "+stage+" certificate",
		zap.Int("row", recipient.Row),
		zap.String("certificate_code", recipient.Code),
		zap.Error(err),
	)
}
