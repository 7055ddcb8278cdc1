package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/framework"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/approval"
	"mercator-hq/charter/pkg/policy/library"
	"mercator-hq/charter/pkg/storage"
)

var t0 = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	store    storage.Store
	holder   *library.Holder
	evidence *captureRecorder
	notifier *captureNotifier
	clock    *time.Time
}

type captureRecorder struct {
	mu      sync.Mutex
	records []*evidence.Record
}

func (c *captureRecorder) Record(_ context.Context, rec *evidence.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *captureRecorder) kinds() []evidence.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]evidence.Kind, len(c.records))
	for i, r := range c.records {
		out[i] = r.Kind
	}
	return out
}

type captureNotifier struct {
	sent []approval.Notification
}

func (n *captureNotifier) Notify(_ context.Context, note approval.Notification) error {
	n.sent = append(n.sent, note)
	return nil
}

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(
		[]policy.Template{
			{
				ID:                "ai-use",
				Title:             "{{organizationName}} AI Use Policy",
				Content:           "# {{organizationName}} AI Use Policy\n\n{{clauses}}\n\nQuestions go to {{aiCoordinator}}.\n",
				AvailableClauses:  []string{"purpose", "privacy", "minors"},
				Frameworks:        []string{"nist-ai-rmf"},
				ReviewCycleMonths: 6,
			},
			{
				ID:               "unreviewed",
				Title:            "Draft Guidance",
				Content:          "# Draft Guidance\n\n{{clauses}}\n",
				AvailableClauses: []string{"purpose"},
			},
		},
		[]policy.Clause{
			{ID: "purpose", Title: "Purpose", Body: "This policy governs generative AI tools.", Priority: 1},
			{
				ID: "privacy", Title: "Student Privacy", Body: "Student records are never entered into AI tools.", Priority: 2,
				Rules: []policy.SelectionRule{{Field: policy.FieldHasPrivacyOfficer, Operator: policy.OpEquals, Values: []string{"true"}}},
			},
			{
				ID: "minors", Title: "Children Under 13", Body: "Parental consent is required.", Priority: 0,
				Rules:     []policy.SelectionRule{{Field: policy.FieldStudentAgeMin, Operator: policy.OpLessThan, Values: []string{"13"}}},
				DependsOn: []string{"privacy"},
			},
		},
		[]policy.WorkflowDefinition{{
			TemplateID: "ai-use",
			Mode:       policy.WorkflowSequential,
			Steps: []policy.WorkflowStep{
				{Role: policy.RoleTechnologyDirector, Required: true},
				{Role: policy.RoleSuperintendent, Required: true},
			},
			Escalations: []policy.EscalationRule{{AfterDays: 3, NotifyRole: policy.RoleSuperintendent}},
		}},
	)
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	return lib
}

func newFixture(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	f := &fixture{
		store:    store,
		holder:   library.NewHolder(testLibrary(t)),
		evidence: &captureRecorder{},
		notifier: &captureNotifier{},
	}
	clock := t0
	f.clock = &clock

	var n int
	e, err := New(f.holder, store, Options{
		Evidence: f.evidence,
		Notifier: f.notifier,
		Now:      func() time.Time { return *f.clock },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.engine = e
	return f
}

func profile() *policy.OrganizationProfile {
	age := 5
	return &policy.OrganizationProfile{
		OrgID:             "lincoln",
		Name:              "Lincoln USD",
		Type:              "K12",
		State:             "CA",
		StudentAgeMin:     &age,
		HasPrivacyOfficer: true,
	}
}

func (f *fixture) generate(t *testing.T, autoUpdate bool) *policy.Policy {
	t.Helper()
	p, err := f.engine.GeneratePolicy(context.Background(), "ai-use", profile(), "California", GenerateOptions{AutoUpdate: autoUpdate})
	if err != nil {
		t.Fatalf("GeneratePolicy() error = %v", err)
	}
	return p
}

func TestGeneratePolicy(t *testing.T) {
	f := newFixture(t, nil)

	p := f.generate(t, false)
	again := f.generate(t, false)

	if p.Content != again.Content {
		t.Error("content differs between identical generations")
	}
	if fmt.Sprint(p.FillableFields) != fmt.Sprint(again.FillableFields) {
		t.Error("fillable fields differ between identical generations")
	}
	if !governance.HasDisclaimer(p.Content) || p.Disclaimer != governance.Disclaimer {
		t.Error("policy is missing the disclaimer")
	}
	if p.Status != policy.StatusDraft || p.Version != 1 || p.Revision != 1 {
		t.Errorf("status=%s version=%d revision=%d", p.Status, p.Version, p.Revision)
	}
	if p.Title != "Lincoln USD AI Use Policy" {
		t.Errorf("Title = %q", p.Title)
	}
	if _, ok := p.FillableFields["aiCoordinator"]; !ok {
		t.Errorf("FillableFields = %v, want aiCoordinator", p.FillableFields)
	}

	purpose := strings.Index(p.Content, "## Purpose")
	privacy := strings.Index(p.Content, "## Student Privacy")
	minors := strings.Index(p.Content, "## Children Under 13")
	if purpose < 0 || privacy < 0 || minors < 0 {
		t.Fatalf("missing clauses in:\n%s", p.Content)
	}
	if !(privacy < minors) {
		t.Error("dependent clause placed before its dependency")
	}

	stored, err := f.store.GetPolicy(context.Background(), p.ID)
	if err != nil || stored.Content != p.Content {
		t.Fatalf("stored policy = %v, %v", stored, err)
	}
	if kinds := f.evidence.kinds(); len(kinds) != 2 || kinds[0] != evidence.KindPolicyGenerated {
		t.Errorf("evidence kinds = %v", kinds)
	}
}

func TestGeneratePolicy_ClauseSelection(t *testing.T) {
	f := newFixture(t, nil)
	prof := profile()
	prof.HasPrivacyOfficer = false
	prof.StudentAgeMin = nil

	p, err := f.engine.GeneratePolicy(context.Background(), "ai-use", prof, "", GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p.Content, "Student Privacy") || strings.Contains(p.Content, "Children Under 13") {
		t.Errorf("unselected clauses present:\n%s", p.Content)
	}
	if !strings.Contains(p.Content, "## Purpose") {
		t.Error("unconditional clause missing")
	}
}

func TestGeneratePolicy_Errors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name       string
		templateID string
		profile    *policy.OrganizationProfile
		kind       governance.Kind
	}{
		{name: "unknown template", templateID: "missing", profile: profile(), kind: governance.KindConfiguration},
		{name: "nil profile", templateID: "ai-use", kind: governance.KindValidation},
		{name: "profile without org", templateID: "ai-use", profile: &policy.OrganizationProfile{Name: "x"}, kind: governance.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.GeneratePolicy(context.Background(), tt.templateID, tt.profile, "", GenerateOptions{})
			if !governance.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
			if !strings.HasSuffix(err.Error(), governance.Disclaimer) {
				t.Errorf("error %q does not end with the disclaimer", err)
			}
		})
	}
}

func TestGeneratePolicy_CyclicClauses(t *testing.T) {
	f := newFixture(t, nil)
	lib := f.holder.Load().WithClause(policy.Clause{
		ID: "privacy", Title: "Student Privacy", Body: "b", DependsOn: []string{"minors"},
	})
	f.holder.Store(lib)

	_, err := f.engine.GeneratePolicy(context.Background(), "ai-use", profile(), "", GenerateOptions{})
	if !governance.IsKind(err, governance.KindConfiguration) {
		t.Fatalf("error = %v, want configuration", err)
	}
}

func TestRedlines_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.generate(t, false)

	updated := strings.Replace(p.Content, "never entered", "never pasted", 1) +
		"## Security\n\nAccounts use single sign-on.\n"

	diffs, err := f.engine.GenerateRedlines(ctx, p, updated, "tighten wording", "j.rivera")
	if err != nil {
		t.Fatal(err)
	}
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want modification + addition: %+v", len(diffs), diffs)
	}
	for _, d := range diffs {
		if d.Version != 2 || d.Author != "j.rivera" || !d.ApprovalRequired {
			t.Errorf("diff = %+v", d)
		}
	}

	applied, err := f.engine.ApplyRedlines(ctx, p.ID, p.Revision, diffs)
	if err != nil {
		t.Fatalf("ApplyRedlines() error = %v", err)
	}
	if applied.Content != updated {
		t.Errorf("replayed content differs:\n%s\nwant:\n%s", applied.Content, updated)
	}
	if applied.Version != 2 || len(applied.DiffHistory) != 2 || applied.Revision != 2 {
		t.Errorf("version=%d history=%d revision=%d", applied.Version, len(applied.DiffHistory), applied.Revision)
	}

	tests := []struct {
		name string
		base int64
		kind governance.Kind
	}{
		{name: "stale revision", base: 1, kind: governance.KindConflict},
		{name: "already applied version", base: 2, kind: governance.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ApplyRedlines(ctx, p.ID, tt.base, diffs)
			if !governance.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestGenerateRedlines_KeepsDisclaimer(t *testing.T) {
	f := newFixture(t, nil)
	p := f.generate(t, false)

	stripped := strings.TrimPrefix(p.Content, governance.DisclaimerBanner)
	diffs, err := f.engine.GenerateRedlines(context.Background(), p, stripped, "", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(diffs) != 0 {
		t.Errorf("removing the banner produced diffs: %+v", diffs)
	}
}

func TestApprovalWorkflow_Sequential(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.generate(t, false)

	if err := f.engine.InitiateApprovalWorkflow(ctx, p.ID); err != nil {
		t.Fatalf("InitiateApprovalWorkflow() error = %v", err)
	}
	st, err := f.engine.ApprovalStatus(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Policy.Status != policy.StatusReview || len(st.Approvals) != 2 || len(st.Actionable) != 1 {
		t.Fatalf("status = %s, approvals = %d, actionable = %v", st.Policy.Status, len(st.Approvals), st.Actionable)
	}
	tech, supt := st.Approvals[0], st.Approvals[1]

	superintendent := policy.Approver{Role: policy.RoleSuperintendent, Name: "Dr. Okafor"}
	_, err = f.engine.ProcessApproval(ctx, p.ID, supt.ID, policy.ActionApprove, "", superintendent)
	if !governance.IsKind(err, governance.KindValidation) {
		t.Fatalf("out-of-order approval error = %v, want validation", err)
	}

	if _, err := f.engine.ProcessApproval(ctx, p.ID, tech.ID, policy.ActionApprove, "looks good",
		policy.Approver{Role: policy.RoleTechnologyDirector, Name: "M. Chen"}); err != nil {
		t.Fatal(err)
	}
	*f.clock = t0.Add(time.Hour)
	final, err := f.engine.ProcessApproval(ctx, p.ID, supt.ID, policy.ActionApprove, "", superintendent)
	if err != nil {
		t.Fatal(err)
	}
	if !final.IsComplete {
		t.Error("final approval is not complete")
	}

	stored, _ := f.store.GetPolicy(ctx, p.ID)
	if stored.Status != policy.StatusApproved {
		t.Fatalf("policy status = %s, want approved", stored.Status)
	}
	wantReview := t0.Add(time.Hour).AddDate(0, 6, 0)
	if stored.NextReviewAt == nil || !stored.NextReviewAt.Equal(wantReview) {
		t.Errorf("NextReviewAt = %v, want %v", stored.NextReviewAt, wantReview)
	}
	// two initial snapshots plus one per decision
	if len(stored.ApprovalTrail) != 4 {
		t.Errorf("approval trail has %d entries, want 4", len(stored.ApprovalTrail))
	}
}

func TestApprovalWorkflow_RejectIsFinal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.generate(t, false)
	if err := f.engine.InitiateApprovalWorkflow(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	st, _ := f.engine.ApprovalStatus(ctx, p.ID)
	tech := policy.Approver{Role: policy.RoleTechnologyDirector, Name: "M. Chen"}

	if _, err := f.engine.ProcessApproval(ctx, p.ID, st.Approvals[0].ID, policy.ActionReject, "", tech); !governance.IsKind(err, governance.KindValidation) {
		t.Fatalf("reject without comment error = %v, want validation", err)
	}
	if _, err := f.engine.ProcessApproval(ctx, p.ID, st.Approvals[0].ID, policy.ActionReject, "vendor list is incomplete", tech); err != nil {
		t.Fatal(err)
	}

	stored, _ := f.store.GetPolicy(ctx, p.ID)
	if stored.Status != policy.StatusRejected {
		t.Fatalf("status = %s, want rejected", stored.Status)
	}
	_, err := f.engine.ProcessApproval(ctx, p.ID, st.Approvals[1].ID, policy.ActionApprove, "",
		policy.Approver{Role: policy.RoleSuperintendent, Name: "Dr. Okafor"})
	if !governance.IsKind(err, governance.KindValidation) {
		t.Errorf("action on rejected policy error = %v, want validation", err)
	}
}

func TestInitiateApprovalWorkflow_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.engine.GeneratePolicy(ctx, "unreviewed", profile(), "", GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	err = f.engine.InitiateApprovalWorkflow(ctx, p.ID)
	if !governance.IsKind(err, governance.KindConfiguration) || !errors.Is(err, approval.ErrNoWorkflowDefined) {
		t.Errorf("error = %v, want configuration wrapping ErrNoWorkflowDefined", err)
	}

	if err := f.engine.InitiateApprovalWorkflow(ctx, "missing"); !governance.IsKind(err, governance.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

// racingStore lets another writer save the policy just before the engine's
// first save, forcing a revision conflict.
type racingStore struct {
	*storage.MemoryStore
	races int
}

func (s *racingStore) UpdatePolicy(ctx context.Context, p *policy.Policy, approvals ...*policy.Approval) error {
	if s.races > 0 && len(approvals) > 0 && p.Status != policy.StatusDraft {
		s.races--
		other, err := s.MemoryStore.GetPolicy(ctx, p.ID)
		if err != nil {
			return err
		}
		other.UpdatedAt = other.UpdatedAt.Add(time.Second)
		if err := s.MemoryStore.UpdatePolicy(ctx, other); err != nil {
			return err
		}
	}
	return s.MemoryStore.UpdatePolicy(ctx, p, approvals...)
}

func TestProcessApproval_RetriesOnConflict(t *testing.T) {
	store := &racingStore{MemoryStore: storage.NewMemoryStore()}
	f := newFixture(t, store)
	ctx := context.Background()
	p := f.generate(t, false)
	if err := f.engine.InitiateApprovalWorkflow(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	st, _ := f.engine.ApprovalStatus(ctx, p.ID)

	store.races = 1
	a, err := f.engine.ProcessApproval(ctx, p.ID, st.Approvals[0].ID, policy.ActionApprove, "",
		policy.Approver{Role: policy.RoleTechnologyDirector, Name: "M. Chen"})
	if err != nil {
		t.Fatalf("ProcessApproval() error = %v", err)
	}
	if a.Action != policy.ActionApprove {
		t.Errorf("Action = %s", a.Action)
	}

	store.races = DefaultConflictRetries + 1
	_, err = f.engine.ProcessApproval(ctx, p.ID, st.Approvals[1].ID, policy.ActionApprove, "",
		policy.Approver{Role: policy.RoleSuperintendent, Name: "Dr. Okafor"})
	if !governance.IsKind(err, governance.KindConflict) || !errors.Is(err, storage.ErrRevisionConflict) {
		t.Errorf("error = %v, want conflict after exhausting retries", err)
	}
}

func TestCheckEscalations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.generate(t, false)
	if err := f.engine.InitiateApprovalWorkflow(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{name: "not yet due", at: t0.Add(48 * time.Hour), want: 0},
		{name: "due", at: t0.Add(4 * 24 * time.Hour), want: 1},
		{name: "fires once", at: t0.Add(5 * 24 * time.Hour), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sent, err := f.engine.CheckEscalations(ctx, tt.at)
			if err != nil {
				t.Fatal(err)
			}
			if len(sent) != tt.want {
				t.Fatalf("sent %d notifications, want %d", len(sent), tt.want)
			}
		})
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifier got %d notifications, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.PendingRole != policy.RoleTechnologyDirector || n.NotifyRole != policy.RoleSuperintendent || n.Level != 1 {
		t.Errorf("notification = %+v", n)
	}
	st, _ := f.engine.ApprovalStatus(ctx, p.ID)
	if st.Approvals[0].EscalationLevel != 1 || st.Approvals[1].EscalationLevel != 0 {
		t.Errorf("escalation levels = %d, %d", st.Approvals[0].EscalationLevel, st.Approvals[1].EscalationLevel)
	}
}

// faultyStore fails or panics when saving specific policies.
type faultyStore struct {
	*storage.MemoryStore
	fail  map[string]bool
	panic map[string]bool
}

func (s *faultyStore) UpdatePolicy(ctx context.Context, p *policy.Policy, approvals ...*policy.Approval) error {
	if s.panic[p.ID] {
		panic("disk on fire")
	}
	if s.fail[p.ID] {
		return storage.NewError("memory", "update_policy", errors.New("write refused"))
	}
	return s.MemoryStore.UpdatePolicy(ctx, p, approvals...)
}

func TestAutoUpdatePoliciesFromFramework(t *testing.T) {
	store := &faultyStore{MemoryStore: storage.NewMemoryStore(), fail: map[string]bool{}, panic: map[string]bool{}}
	f := newFixture(t, store)
	ctx := context.Background()

	ok := f.generate(t, true)
	failing := f.generate(t, true)
	panicking := f.generate(t, true)
	optedOut := f.generate(t, false)
	store.fail[failing.ID] = true
	store.panic[panicking.ID] = true

	update := framework.Update{
		FrameworkID:      "nist-ai-rmf",
		Version:          "1.1",
		Description:      "Adds generative AI profile",
		AffectedControls: []string{"GOVERN-1.1", "MAP-1.1"},
		EffectiveDate:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	results, err := f.engine.AutoUpdatePoliciesFromFramework(ctx, update)
	if err != nil {
		t.Fatalf("AutoUpdatePoliciesFromFramework() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 auto-update policies", len(results))
	}

	byID := map[string]policy.UpdateResult{}
	for _, r := range results {
		byID[r.PolicyID] = r
	}
	if _, touched := byID[optedOut.ID]; touched {
		t.Error("policy without auto-update was updated")
	}

	good := byID[ok.ID]
	if !good.Success || good.Skipped || !good.RequiresApproval || len(good.Diffs) != 1 {
		t.Errorf("result = %+v", good)
	}
	for _, id := range []string{failing.ID, panicking.ID} {
		r := byID[id]
		if r.Success || !strings.HasSuffix(r.Error, governance.Disclaimer) {
			t.Errorf("result for %s = %+v, want failure with disclaimer", id, r)
		}
	}
	if !strings.Contains(byID[panicking.ID].Error, "panic") {
		t.Errorf("panic not reported: %q", byID[panicking.ID].Error)
	}

	stored, _ := store.GetPolicy(ctx, ok.ID)
	wantEntry := "## Compliance Framework Updates\n\n- **nist-ai-rmf 1.1** (effective 2026-10-01): Adds generative AI profile. Affected controls: GOVERN-1.1, MAP-1.1.\n"
	if !strings.HasSuffix(stored.Content, wantEntry) {
		t.Errorf("content does not end with update entry:\n%s", stored.Content)
	}
	if stored.Version != 2 || stored.DiffHistory[0].SourceJustification != update.Description {
		t.Errorf("version=%d history=%+v", stored.Version, stored.DiffHistory)
	}

	store.fail = map[string]bool{}
	store.panic = map[string]bool{}
	again, err := f.engine.AutoUpdatePoliciesFromFramework(ctx, update)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range again {
		if r.PolicyID == ok.ID && !r.Skipped {
			t.Errorf("second run did not skip %s: %+v", ok.ID, r)
		}
		if r.PolicyID == failing.ID && (r.Skipped || !r.Success) {
			t.Errorf("retry of failed policy = %+v", r)
		}
	}

	next := update
	next.Version = "1.2"
	next.EffectiveDate = time.Time{}
	if _, err := f.engine.AutoUpdatePoliciesFromFramework(ctx, next); err != nil {
		t.Fatal(err)
	}
	stored, _ = store.GetPolicy(ctx, ok.ID)
	if !strings.HasSuffix(stored.Content, "Affected controls: GOVERN-1.1, MAP-1.1.\n- **nist-ai-rmf 1.2**: Adds generative AI profile. Affected controls: GOVERN-1.1, MAP-1.1.\n") {
		t.Errorf("second entry not appended to the section:\n%s", stored.Content)
	}
}

func TestAutoUpdatePoliciesFromFramework_InvalidUpdate(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.AutoUpdatePoliciesFromFramework(context.Background(), framework.Update{FrameworkID: "nist-ai-rmf"})
	if !governance.IsKind(err, governance.KindValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestSaveClause(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	edit := policy.Clause{ID: "purpose", Title: "Purpose", Body: "This policy governs all AI tools.", Priority: 1}
	saved, err := f.engine.SaveClause(ctx, edit, 0)
	if err != nil {
		t.Fatalf("SaveClause() error = %v", err)
	}
	if saved.Revision != 1 {
		t.Errorf("Revision = %d, want 1", saved.Revision)
	}
	if c, _ := f.engine.Library().Clause("purpose"); c.Body != edit.Body {
		t.Errorf("library clause = %q, want edited body", c.Body)
	}

	p := f.generate(t, false)
	if !strings.Contains(p.Content, "governs all AI tools") {
		t.Error("generation does not use the edited clause")
	}

	tests := []struct {
		name   string
		clause policy.Clause
		base   int64
		kind   governance.Kind
	}{
		{name: "stale base", clause: edit, base: 0, kind: governance.KindConflict},
		{name: "empty body", clause: policy.Clause{ID: "purpose", Title: "Purpose", Body: "  "}, base: 1, kind: governance.KindValidation},
		{
			name:   "bad rule field",
			clause: policy.Clause{ID: "x", Title: "X", Body: "b", Rules: []policy.SelectionRule{{Field: "district", Operator: policy.OpEquals, Values: []string{"1"}}}},
			kind:   governance.KindValidation,
		},
		{
			name:   "dependency cycle",
			clause: policy.Clause{ID: "privacy", Title: "Student Privacy", Body: "b", DependsOn: []string{"minors"}},
			kind:   governance.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SaveClause(ctx, tt.clause, tt.base)
			if !governance.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}

	if _, err := f.engine.SaveClause(ctx, policy.Clause{ID: "purpose", Title: "Purpose", Body: "Third draft."}, 1); err != nil {
		t.Fatalf("save at current base: %v", err)
	}
}

func TestSaveClause_LibraryRevision(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.holder.Store(testLibrary(t).WithClause(policy.Clause{
		ID: "purpose", Title: "Purpose", Body: "Reviewed three times.", Priority: 1, Revision: 3,
	}))

	edit := policy.Clause{ID: "purpose", Title: "Purpose", Body: "Stale edit.", Priority: 1}
	for _, base := range []int64{0, 2, 99} {
		if _, err := f.engine.SaveClause(ctx, edit, base); !governance.IsKind(err, governance.KindConflict) {
			t.Errorf("SaveClause(base %d) error = %v, want conflict", base, err)
		}
	}
	if c, _ := f.engine.Library().Clause("purpose"); c.Body != "Reviewed three times." || c.Revision != 3 {
		t.Errorf("library clause = rev %d %q after rejected saves", c.Revision, c.Body)
	}

	edit.Body = "Fourth revision."
	saved, err := f.engine.SaveClause(ctx, edit, 3)
	if err != nil {
		t.Fatalf("SaveClause(base 3) error = %v", err)
	}
	if saved.Revision != 4 {
		t.Errorf("Revision = %d, want 4", saved.Revision)
	}
	if _, err := f.engine.SaveClause(ctx, edit, 3); !governance.IsKind(err, governance.KindConflict) {
		t.Errorf("second save from base 3 error = %v, want conflict", err)
	}
}

func TestClauseOverlay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.engine.SaveClause(ctx, policy.Clause{ID: "purpose", Title: "Purpose", Body: "Edited."}, 0); err != nil {
		t.Fatal(err)
	}

	overlay := NewClauseOverlay(f.holder, f.store)
	if err := overlay.Publish(testLibrary(t)); err != nil {
		t.Fatal(err)
	}
	c, _ := f.holder.Load().Clause("purpose")
	if c.Body != "Edited." || c.Revision != 1 {
		t.Errorf("reloaded clause = %+v, want stored edit", c)
	}
}
