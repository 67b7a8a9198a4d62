// Package trip orchestrates one conformity evaluation run: normalize
// the uploaded telemetry tables, derive trip metrics, judge them
// against the rule set and persist the resulting report bundle.
package trip

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/analysis"
	"github.com/pemsgate/pemsgate/internal/conformity"
	"github.com/pemsgate/pemsgate/internal/ingest"
	"github.com/pemsgate/pemsgate/internal/report"
	"github.com/pemsgate/pemsgate/internal/ruleset"
	"github.com/pemsgate/pemsgate/internal/schema"
	"github.com/pemsgate/pemsgate/internal/units"
)

// Service errors.
var (
	// ErrNoRuleDoc is returned when the service is built without a rule
	// document.
	ErrNoRuleDoc = errors.New("trip: no rule document configured")

	// ErrNoTelemetry is returned when an evaluation request carries
	// neither a PEMS dataset nor the demo flag.
	ErrNoTelemetry = errors.New("trip: request has no pems dataset")

	// ErrBadTripID is returned for an empty trip ID.
	ErrBadTripID = errors.New("trip: empty trip id")
)

// Config configures the evaluation service.
type Config struct {
	// RuleDoc is the YAML rule document evaluations run against. Required.
	RuleDoc []byte

	// Units overrides the unit registry. Nil uses units.Default().
	Units *units.Registry

	// Repository persists report bundles. Nil disables persistence.
	Repository report.Repository

	Logger zerolog.Logger
}

// Service runs the evaluation pipeline. It is safe for concurrent use:
// the base rule set is parsed once, and per-request overrides are
// applied to a fresh parse so requests never observe each other.
type Service struct {
	ruleDoc   []byte
	baseRules *ruleset.RuleSet
	registry  *units.Registry
	repo      report.Repository
	log       zerolog.Logger
}

// NewService builds the service and validates the rule document up
// front so a malformed file fails at startup, not on the first request.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.RuleDoc) == 0 {
		return nil, ErrNoRuleDoc
	}
	registry := cfg.Units
	if registry == nil {
		registry = units.Default()
	}
	base, err := ruleset.Load(cfg.RuleDoc, nil, registry)
	if err != nil {
		return nil, fmt.Errorf("load rule document: %w", err)
	}
	return &Service{
		ruleDoc:   cfg.RuleDoc,
		baseRules: base,
		registry:  registry,
		repo:      cfg.Repository,
		log:       cfg.Logger,
	}, nil
}

// Dataset pairs one uploaded raw table with its column mapping.
type Dataset struct {
	Table   ingest.RawTable      `json:"table"`
	Mapping ingest.ColumnMapping `json:"mapping"`
}

// EvaluateRequest is the payload of one evaluation run. PEMS is
// mandatory unless Demo is set; GPS and ECU refine distance, elevation
// and gap checks when present.
type EvaluateRequest struct {
	// Demo replaces the uploaded datasets with a built-in synthetic
	// compliant trip. Useful for smoke tests and demos.
	Demo bool `json:"demo,omitempty"`

	PEMS *Dataset `json:"pems,omitempty"`
	GPS  *Dataset `json:"gps,omitempty"`
	ECU  *Dataset `json:"ecu,omitempty"`

	// Calibrations keys analyzer pre/post records by channel name.
	Calibrations map[string]analysis.Calibration `json:"calibrations,omitempty"`
	PNZeroPre    float64                         `json:"pnZeroPre,omitempty"`
	PNZeroPost   float64                         `json:"pnZeroPost,omitempty"`

	// Overrides patch individual limit values for this run only, e.g.
	// {"final_conformity.limits.nox_mg_km": 120}.
	Overrides ruleset.Overrides `json:"overrides,omitempty"`
}

// Evaluate runs the full pipeline for one trip and returns the report
// bundle. The bundle is persisted before it is returned; created
// reports whether this trip had no prior report.
func (s *Service) Evaluate(ctx context.Context, tripID string, req EvaluateRequest) (bundle *conformity.ReportBundle, created bool, err error) {
	if tripID == "" {
		return nil, false, ErrBadTripID
	}

	rules := s.baseRules
	if len(req.Overrides) > 0 {
		rules, err = ruleset.Load(s.ruleDoc, req.Overrides, s.registry)
		if err != nil {
			return nil, false, fmt.Errorf("apply overrides: %w", err)
		}
	}

	inputs, err := s.buildInputs(req)
	if err != nil {
		return nil, false, err
	}

	engine, err := analysis.NewEngine(analysis.Config{Rules: rules, Logger: s.log})
	if err != nil {
		return nil, false, err
	}
	metrics, err := engine.Compute(inputs)
	if err != nil {
		return nil, false, fmt.Errorf("compute metrics: %w", err)
	}

	evaluator, err := conformity.NewEvaluator(conformity.Config{Rules: rules, Logger: s.log})
	if err != nil {
		return nil, false, err
	}
	bundle = evaluator.Evaluate(tripID, metrics)

	if s.repo != nil {
		created, err = s.repo.Save(ctx, bundle)
		if err != nil {
			return nil, false, fmt.Errorf("save report for trip %s: %w", tripID, err)
		}
	}

	s.log.Info().
		Str("trip_id", tripID).
		Str("overall", string(bundle.Overall)).
		Bool("created", created).
		Bool("demo", req.Demo).
		Msg("trip evaluated")
	return bundle, created, nil
}

// Report fetches a previously stored report.
func (s *Service) Report(ctx context.Context, tripID string) (*report.StoredReport, error) {
	if s.repo == nil {
		return nil, report.ErrReportNotFound
	}
	return s.repo.Get(ctx, tripID)
}

// DeleteReport removes a previously stored report.
func (s *Service) DeleteReport(ctx context.Context, tripID string) error {
	if s.repo == nil {
		return report.ErrReportNotFound
	}
	return s.repo.Delete(ctx, tripID)
}

// RuleSetName returns the display name and version of the loaded rules.
func (s *Service) RuleSetName() (name, version string) {
	return s.baseRules.Name, s.baseRules.Version
}

// buildInputs normalizes the request datasets, or fabricates the demo
// trip when asked.
func (s *Service) buildInputs(req EvaluateRequest) (analysis.Inputs, error) {
	if req.Demo {
		return analysis.DemoTrip()
	}
	if req.PEMS == nil {
		return analysis.Inputs{}, ErrNoTelemetry
	}

	mapper := ingest.NewMapper(s.registry)
	in := analysis.Inputs{
		Channels:   req.Calibrations,
		PNZeroPre:  req.PNZeroPre,
		PNZeroPost: req.PNZeroPost,
	}

	var err error
	if in.PEMS, err = mapper.Normalize(&req.PEMS.Table, schema.PEMS, req.PEMS.Mapping); err != nil {
		return analysis.Inputs{}, err
	}
	if req.GPS != nil {
		if in.GPS, err = mapper.Normalize(&req.GPS.Table, schema.GPS, req.GPS.Mapping); err != nil {
			return analysis.Inputs{}, err
		}
	}
	if req.ECU != nil {
		if in.ECU, err = mapper.Normalize(&req.ECU.Table, schema.ECU, req.ECU.Mapping); err != nil {
			return analysis.Inputs{}, err
		}
	}
	return in, nil
}

// IsInvalid reports whether an evaluation error was caused by the
// request payload rather than the service, so handlers can answer 4xx
// instead of 5xx.
func IsInvalid(err error) bool {
	for _, sentinel := range []error{
		ErrNoTelemetry,
		ErrBadTripID,
		ingest.ErrBadTable,
		ingest.ErrMissingRequiredField,
		ingest.ErrSourceColumnNotFound,
		ingest.ErrUnknownField,
		units.ErrUnknownUnit,
		units.ErrDimensionMismatch,
		units.ErrUnsupportedConversion,
		ruleset.ErrMalformedRuleSpec,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
