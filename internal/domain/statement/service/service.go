// Package service provides the statement parsing entry point.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/sniffer"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/metrics"
)

const tracerName = "github.com/FACorreiaa/statement-engine/internal/domain/statement/service"

// TemplateSource resolves templates; *template.Cache implements it.
type TemplateSource interface {
	Get(ctx context.Context, identifier string) (template.Template, error)
}

// ParserBuilder creates parsers; *registry.Registry implements it.
type ParserBuilder interface {
	Build(ctx context.Context, t template.Template) (registry.Parser, error)
}

// Categorizer assigns categories to parsed transactions.
type Categorizer interface {
	Categorize(txs []model.Transaction) []model.Transaction
}

// Result is the outcome of one parse. Transactions is never nil.
type Result struct {
	Success      bool                `json:"success"`
	Transactions []model.Transaction `json:"transactions"`
	Error        string              `json:"error,omitempty"`
	// Err keeps the classified error for callers that branch on it.
	Err error `json:"-"`
}

// StatementService parses documents with stored templates. It holds no
// per-parse state and is safe for concurrent use.
type StatementService struct {
	templates   TemplateSource
	parsers     ParserBuilder
	categorizer Categorizer
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewStatementService creates a new statement service
func NewStatementService(templates TemplateSource, parsers ParserBuilder, logger *slog.Logger) *StatementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementService{
		templates: templates,
		parsers:   parsers,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// WithCategorizer enables categorization of parsed transactions.
func (s *StatementService) WithCategorizer(c Categorizer) *StatementService {
	s.categorizer = c
	return s
}

// WithMetrics records parse counts and durations.
func (s *StatementService) WithMetrics(m *metrics.Metrics) *StatementService {
	s.metrics = m
	return s
}

// WithTracer overrides the global tracer provider.
func (s *StatementService) WithTracer(tp trace.TracerProvider) *StatementService {
	s.tracer = tp.Tracer(tracerName)
	return s
}

// ParseStatement parses doc with the template identified by templateID.
// Every failure, panics included, is reported in the result.
func (s *StatementService) ParseStatement(ctx context.Context, doc model.Document, templateID string) (res Result) {
	ctx, span := s.tracer.Start(ctx, "ParseStatement", trace.WithAttributes(
		attribute.String("template.id", templateID),
		attribute.String("document.name", doc.Name),
		attribute.Int("document.bytes", len(doc.Data)),
	))
	start := time.Now()
	metricLabel := metrics.UnknownTemplate

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("statement parse panicked",
				slog.String("template", templateID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res = failure(fmt.Errorf("internal parser error: %v", r))
		}

		s.metrics.ObserveParse(metricLabel, res.Success, time.Since(start).Seconds(), len(res.Transactions))
		span.SetAttributes(attribute.Int("transactions", len(res.Transactions)))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
	}()

	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		s.logger.Warn("template lookup failed",
			slog.String("template", templateID),
			slog.Any("error", err),
		)
		return failure(err)
	}
	metricLabel = t.Identifier

	txs, err := s.Run(ctx, t, doc)
	if err != nil {
		s.logger.Warn("statement parse failed",
			slog.String("template", templateID),
			slog.String("document", doc.Name),
			slog.Any("error", err),
		)
		return failure(err)
	}

	s.logger.Info("statement parsed",
		slog.String("template", templateID),
		slog.String("document", doc.Name),
		slog.Int("transactions", len(txs)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return Result{Success: true, Transactions: txs}
}

// Run parses doc with an already loaded template. It implements
// template.Runner so the manager can dry-run templates.
func (s *StatementService) Run(ctx context.Context, t template.Template, doc model.Document) (txs []model.Transaction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal parser error: %v", r)
		}
	}()

	if err := checkFormat(t, doc); err != nil {
		return nil, err
	}

	parser, err := s.parsers.Build(ctx, t)
	if err != nil {
		return nil, err
	}
	txs, err = parser.Parse(ctx, doc)
	if err != nil {
		return nil, err
	}
	if s.categorizer != nil {
		txs = s.categorizer.Categorize(txs)
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return txs, nil
}

func checkFormat(t template.Template, doc model.Document) error {
	detected, err := sniffer.DetectFormat(doc)
	if errors.Is(err, sniffer.ErrEmptyFile) {
		return fmt.Errorf("%w: %s", err, doc.Name)
	}
	if err != nil || detected != t.Format {
		if detected == model.FormatUnknown {
			detected = "unknown"
		}
		return fmt.Errorf("%w: template %s expects %s, document is %s",
			model.ErrFormatMismatch, t.Identifier, t.Format, detected)
	}
	return nil
}

func failure(err error) Result {
	return Result{
		Success:      false,
		Transactions: []model.Transaction{},
		Error:        err.Error(),
		Err:          err,
	}
}
