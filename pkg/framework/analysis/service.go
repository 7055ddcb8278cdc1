package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	"mercator-hq/charter/pkg/framework"
	"mercator-hq/charter/pkg/framework/catalog"
	"mercator-hq/charter/pkg/framework/coverage"
	"mercator-hq/charter/pkg/framework/extract"
	"mercator-hq/charter/pkg/framework/mapper"
	"mercator-hq/charter/pkg/framework/recommend"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/metrics"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const opMapDocument = "map document to frameworks"

// Options carries the optional collaborators of a Service. Zero values are
// usable: no metrics, a no-op tracer, no evidence and slog.Default.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Evidence evidence.Recorder
	// Now is the report clock. Defaults to time.Now.
	Now func() time.Time
}

// Service maps documents against a fixed control catalog.
type Service struct {
	catalog  *catalog.Catalog
	mapper   *mapper.Mapper
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	evidence evidence.Recorder
	now      func() time.Time
}

// NewService creates a Service over cat.
func NewService(cat *catalog.Catalog, opts Options) (*Service, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, governance.Wrap(governance.KindConfiguration, "create analysis service",
			errors.New("control catalog is empty"))
	}
	s := &Service{
		catalog:  cat,
		mapper:   mapper.New(extract.NewEvaluator()),
		logger:   logging.Component(opts.Logger, "analysis"),
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		evidence: opts.Evidence,
		now:      opts.Now,
	}
	if s.tracer == nil {
		s.tracer = tracing.Noop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Catalog returns the catalog the service maps against.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// MapDocumentToFrameworks maps doc onto the frameworks it names, or onto
// every catalog framework when it names none. Unknown framework IDs are a
// not-found error; a document without an ID is a validation error. Rules
// that fail to evaluate score zero and are logged.
func (s *Service) MapDocumentToFrameworks(ctx context.Context, doc framework.Document) (report *framework.MappingReport, err error) {
	start := time.Now()
	ctx = logging.WithDocumentID(ctx, doc.ID)
	ctx, span := s.tracer.Start(ctx, "analysis.MapDocumentToFrameworks",
		tracing.NewAttributeBuilder().WithDocument(doc.ID).WithOrg(doc.OrgID).Build())
	defer func() {
		tracing.End(span, err)
		s.metrics.RecordOperation("map_document", err, time.Since(start))
	}()

	if strings.TrimSpace(doc.ID) == "" {
		return nil, governance.Newf(governance.KindValidation, opMapDocument, "document ID is required")
	}
	frameworks, err := s.selectFrameworks(doc.Frameworks)
	if err != nil {
		return nil, governance.Wrap(governance.KindNotFound, opMapDocument, err)
	}

	text := extract.NewText(doc.Text)
	var mappings []framework.ControlMapping
	for _, fw := range frameworks {
		for i := range fw.Controls {
			ctl := &fw.Controls[i]
			out := s.mapper.Map(doc.ID, text, ctl)
			for _, ruleErr := range out.RuleErrors {
				s.logger.WarnContext(ctx, "extraction rule failed",
					"framework", fw.ID,
					"control", ctl.ID,
					"error", ruleErr,
				)
				s.metrics.RecordRuleError(fw.ID)
			}
			s.metrics.RecordMapping(fw.ID, string(out.Mapping.Status), out.Mapping.Confidence, out.Retained)
			if out.Retained {
				mappings = append(mappings, out.Mapping)
			}
		}
	}

	gaps := coverage.Gaps(frameworks, mappings)
	for _, g := range gaps {
		s.metrics.RecordGap(g.Framework, string(g.Priority))
	}

	report = &framework.MappingReport{
		DocumentID:      doc.ID,
		Mappings:        mappings,
		Coverage:        coverage.Compute(frameworks, mappings),
		Gaps:            gaps,
		Recommendations: recommend.Generate(gaps),
		ConfidenceScore: meanConfidence(mappings),
		GeneratedAt:     s.now().UTC(),
		Disclaimer:      governance.Disclaimer,
	}
	if report.Mappings == nil {
		report.Mappings = []framework.ControlMapping{}
	}

	tracing.SetMappingAttributes(span, doc.ID, len(frameworks), len(mappings), len(gaps), report.ConfidenceScore)
	s.logger.InfoContext(ctx, "document mapped",
		"frameworks", len(frameworks),
		"mappings", len(mappings),
		"gaps", len(gaps),
		"confidence", report.ConfidenceScore,
		"contains_pii", doc.ContainsPII,
		"student_data", doc.StudentData,
	)
	s.record(ctx, doc, report)
	return report, nil
}

func (s *Service) selectFrameworks(ids []string) ([]*framework.Framework, error) {
	if len(ids) == 0 {
		return s.catalog.Frameworks(), nil
	}

	seen := make(map[string]bool, len(ids))
	var (
		selected []*framework.Framework
		missing  []string
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		fw, ok := s.catalog.Framework(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, fw)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown frameworks %s (known: %s)",
			strings.Join(missing, ", "), strings.Join(s.catalog.IDs(), ", "))
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected, nil
}

func (s *Service) record(ctx context.Context, doc framework.Document, report *framework.MappingReport) {
	if s.evidence == nil {
		return
	}
	attrs := map[string]string{
		"frameworks": strings.Join(frameworkIDs(report.Coverage), ","),
		"gaps":       fmt.Sprintf("%d", len(report.Gaps)),
		"confidence": fmt.Sprintf("%.3f", report.ConfidenceScore),
	}
	if doc.StudentData {
		attrs["student_data"] = "true"
	}
	if len(doc.States) > 0 {
		attrs["states"] = strings.Join(doc.States, ",")
	}
	tracing.InjectToMap(ctx, attrs)

	rec := &evidence.Record{
		Kind:        evidence.KindDocumentMapped,
		SubjectID:   doc.ID,
		OrgID:       doc.OrgID,
		Summary:     fmt.Sprintf("mapped %q: %d mappings, %d gaps", doc.Title, len(report.Mappings), len(report.Gaps)),
		ContentHash: recorder.HashJSON(report),
		Attributes:  attrs,
	}
	if err := s.evidence.Record(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to record mapping evidence", "error", err)
	}
}

func meanConfidence(mappings []framework.ControlMapping) float64 {
	if len(mappings) == 0 {
		return 0
	}
	var sum float64
	for _, m := range mappings {
		sum += m.Confidence
	}
	return sum / float64(len(mappings))
}

func frameworkIDs(cov []framework.Coverage) []string {
	ids := make([]string, len(cov))
	for i, c := range cov {
		ids[i] = c.Framework
	}
	return ids
}
