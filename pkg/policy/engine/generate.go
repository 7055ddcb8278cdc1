package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/assembler"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const opGenerate = "generate policy"

// GenerateOptions carries caller-supplied values for GeneratePolicy.
type GenerateOptions struct {
	// EffectiveDate fills {{effectiveDate}}; zero leaves it fillable.
	EffectiveDate time.Time

	// Fields supplies values for template tokens beyond the organization
	// tokens.
	Fields map[string]string

	// AutoUpdate opts the policy into framework-driven updates.
	AutoUpdate bool
}

// GeneratePolicy assembles a draft policy from the template and the clauses
// whose rules the profile satisfies, and stores it. The assembled content is
// a pure function of the template, profile, jurisdiction, options and
// library snapshot.
func (e *Engine) GeneratePolicy(ctx context.Context, templateID string, profile *policy.OrganizationProfile, jurisdiction string, opts GenerateOptions) (p *policy.Policy, err error) {
	ctx, done := e.begin(ctx, "generate_policy", "engine.GeneratePolicy",
		tracing.NewAttributeBuilder().WithTemplate(templateID))
	defer done(&err)

	if profile == nil {
		return nil, governance.Newf(governance.KindValidation, opGenerate, "organization profile is required")
	}
	if strings.TrimSpace(profile.OrgID) == "" {
		return nil, governance.Newf(governance.KindValidation, opGenerate, "organization profile has no org_id")
	}

	lib := e.library.Load()
	tmpl, ok := lib.Template(templateID)
	if !ok {
		return nil, governance.Newf(governance.KindConfiguration, opGenerate, "unknown template %q", templateID)
	}

	clauses, err := e.selector.Select(tmpl, profile, lib)
	if err != nil {
		return nil, e.fail(opGenerate, "policy", err, governance.KindConfiguration)
	}

	res := assembler.Assemble(tmpl, profile, clauses, assembler.Options{
		Jurisdiction:  jurisdiction,
		EffectiveDate: opts.EffectiveDate,
		Fields:        opts.Fields,
	})

	now := e.now().UTC()
	p = &policy.Policy{
		ID:             e.newID(),
		OrgID:          profile.OrgID,
		TemplateID:     tmpl.ID,
		Title:          res.Title,
		Status:         policy.StatusDraft,
		Content:        res.Content,
		FillableFields: res.FillableFields,
		Jurisdiction:   jurisdiction,
		Frameworks:     append([]string(nil), tmpl.Frameworks...),
		DiffHistory:    []policy.Diff{},
		ApprovalTrail:  []policy.Approval{},
		AutoUpdate:     opts.AutoUpdate,
		Version:        1,
		Disclaimer:     governance.Disclaimer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreatePolicy(ctx, p); err != nil {
		return nil, e.fail(opGenerate, "policy", err, governance.KindConfiguration)
	}

	ctx = logging.WithPolicyID(ctx, p.ID)
	e.metrics.RecordPolicyGenerated(tmpl.ID, len(clauses))
	e.logger.InfoContext(ctx, "policy generated",
		"template_id", tmpl.ID,
		"org_id", p.OrgID,
		"clauses", len(clauses),
		"fillable_fields", len(p.FillableFields),
	)
	e.record(ctx, &evidence.Record{
		Kind:          evidence.KindPolicyGenerated,
		SubjectID:     p.ID,
		OrgID:         p.OrgID,
		Summary:       fmt.Sprintf("generated %q from template %s with %d clauses", p.Title, tmpl.ID, len(clauses)),
		ContentHash:   recorder.HashString(p.Content),
		Revision:      p.Revision,
		LibrarySource: lib.Source,
		Attributes: map[string]string{
			"template_id": tmpl.ID,
			"clauses":     clauseIDs(clauses),
		},
	})
	return p, nil
}

func clauseIDs(clauses []*policy.Clause) string {
	ids := make([]string, len(clauses))
	for i, c := range clauses {
		ids[i] = c.ID
	}
	return strings.Join(ids, ",")
}
