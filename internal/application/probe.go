package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Instruments holds the RED metrics and base logger shared by the use cases of one service.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}

	metrics observability.Metrics
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		metrics:      m,
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// LoggerFor returns the logger carried by ctx, falling back to the service logger.
func (in Instruments) LoggerFor(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, in.log)
}

func (in Instruments) Counter(key observability.MetricKey) observability.Counter {
	return in.metrics.Counter(key)
}

// Begin opens a span for useCase and returns a Probe that must be closed with End.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Probe) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	ctx = logctx.With(ctx, logger)

	return ctx, &Probe{
		in:      in,
		ctx:     ctx,
		span:    span,
		useCase: useCase,
		logger:  logger,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

// External records one call to a dependency such as the payment gateway.
func (in Instruments) External(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

// Probe tracks the outcome of a single use case run.
type Probe struct {
	in      Instruments
	ctx     context.Context
	span    trace.Span
	useCase string
	logger  observability.Logger
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

func (p *Probe) Logger() observability.Logger { return p.logger }

func (p *Probe) Span() trace.Span { return p.span }

// Fail marks the run as failed with a machine-readable status.
func (p *Probe) Fail(status string) {
	p.outcome, p.status = "error", status
}

// Note keeps the outcome but replaces the status text, e.g. IDEMPOTENT_REPLAY.
func (p *Probe) Note(status string) {
	p.status = status
}

// Field adds a field to the closing use_case_done line.
func (p *Probe) Field(key string, value any) {
	p.fields = append(p.fields, observability.F(key, value))
}

// End closes the span, records RED metrics and writes use_case_done.
// Call it from a deferred func so it sees the named error result.
func (p *Probe) End(err error) {
	lat := time.Since(p.start).Seconds()

	if err != nil && p.outcome != "error" {
		p.Fail(apperror.CodeOf(err))
	}

	if p.span != nil {
		if err != nil {
			p.span.RecordError(err)
			p.span.SetStatus(codes.Error, p.status)
		} else {
			p.span.SetStatus(codes.Ok, p.status)
		}
		p.span.End()
	}

	p.in.reqCounter.Add(1,
		observability.L("use_case", p.useCase),
		observability.L("outcome", p.outcome),
	)
	p.in.durHistogram.Observe(lat,
		observability.L("use_case", p.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", p.outcome),
		observability.F("status", p.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(p.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, p.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	p.logger.Info("use_case_done", fields...)
}
