package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("agent-metrics")

// AgentMetrics collects counters around model calls and task sequencing.
type AgentMetrics struct {
	generateCounter     metric.Int64Counter
	generateErrors      metric.Int64Counter
	generateDuration    metric.Float64Histogram
	tasksCompleted      metric.Int64Counter
	tasksFailed         metric.Int64Counter
	verificationRetries metric.Int64Counter
	protocolViolations  metric.Int64Counter
}

// NewAgentMetrics creates the metrics collector.
func NewAgentMetrics() (*AgentMetrics, error) {
	generateCounter, err := meter.Int64Counter(
		"agent_gateway.generate.requests",
		metric.WithDescription("Total number of agent generate calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	generateErrors, err := meter.Int64Counter(
		"agent_gateway.generate.errors",
		metric.WithDescription("Total number of failed generate calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	generateDuration, err := meter.Float64Histogram(
		"agent_gateway.generate.duration",
		metric.WithDescription("Duration of one generate call, model time included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tasksCompleted, err := meter.Int64Counter(
		"agent_gateway.tasks.completed",
		metric.WithDescription("Total number of tasks finished successfully"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	tasksFailed, err := meter.Int64Counter(
		"agent_gateway.tasks.failed",
		metric.WithDescription("Total number of tasks closed as failed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	verificationRetries, err := meter.Int64Counter(
		"agent_gateway.verification.retries",
		metric.WithDescription("Build-and-lint failures sending the model back to executing"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	protocolViolations, err := meter.Int64Counter(
		"agent_gateway.protocol.violations",
		metric.WithDescription("Tool-call sequencing violations logged by the workflow engine"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		generateCounter:     generateCounter,
		generateErrors:      generateErrors,
		generateDuration:    generateDuration,
		tasksCompleted:      tasksCompleted,
		tasksFailed:         tasksFailed,
		verificationRetries: verificationRetries,
		protocolViolations:  protocolViolations,
	}, nil
}

// RecordGenerate records one completed generate call.
func (am *AgentMetrics) RecordGenerate(ctx context.Context, provider string, duration time.Duration, succeeded bool) {
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.Bool("succeeded", succeeded),
	)
	am.generateCounter.Add(ctx, 1, attrs)
	am.generateDuration.Record(ctx, duration.Seconds(), attrs)
	if !succeeded {
		am.generateErrors.Add(ctx, 1, attrs)
	}
}

// RecordTaskCompleted counts a successfully finished task.
func (am *AgentMetrics) RecordTaskCompleted(ctx context.Context, taskID string) {
	am.tasksCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("task.id", taskID)),
	)
}

// RecordTaskFailed counts a task closed as failed.
func (am *AgentMetrics) RecordTaskFailed(ctx context.Context, taskID string) {
	am.tasksFailed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("task.id", taskID)),
	)
}

// RecordVerificationRetry counts one failed verification.
func (am *AgentMetrics) RecordVerificationRetry(ctx context.Context, taskID string) {
	am.verificationRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("task.id", taskID)),
	)
}

// RecordProtocolViolation counts one sequencing violation.
func (am *AgentMetrics) RecordProtocolViolation(ctx context.Context, taskID, tool string) {
	am.protocolViolations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("tool", tool),
		),
	)
}
