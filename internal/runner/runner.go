// Package runner wires the ingestion, rule-engine, and dispatch stages
// together behind a single per-playbook Run call, the top-level
// orchestration described in §5.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eloym/formasur/internal/dispatch"
	"github.com/eloym/formasur/internal/domain"
	domainerrors "github.com/eloym/formasur/internal/domain/errors"
	"github.com/eloym/formasur/internal/ingest"
	"github.com/eloym/formasur/internal/playbook"
	"github.com/eloym/formasur/internal/quiethours"
	"github.com/eloym/formasur/internal/ruleengine"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.NewInputError(path, "unable to read file", err)
	}
	return data, nil
}

// Result summarizes one playbook invocation, mirroring the original
// runner's response shape.
type Result struct {
	Playbook string
	Mode     string
	TotalRows int
	MatchedActions int
	EnqueuedActions int
	Summary  map[string]dispatch.ChannelStats
}

// Repositories groups the persistence dependencies a Runner needs to
// upsert Course/Learner/Enrollment aggregates as it ingests rows.
type Repositories struct {
	Courses     domain.CourseRepository
	Learners    domain.LearnerRepository
	Enrollments domain.EnrollmentRepository
}

// Runner loads a playbook, runs the ingestion pipeline over its source
// workbook, evaluates its ruleset, and dispatches its actions.
type Runner struct {
	loader *playbook.Loader
	repos  Repositories
	dispatcherFactory func(evaluator *ruleengine.Evaluator, quietHours *quiethours.Gate, playbookName string) *dispatch.Dispatcher
	now    func() time.Time
}

// New constructs a Runner. dispatcherFactory builds a Dispatcher bound
// to the given evaluator and quiet-hours gate, so callers can supply
// per-run adapters/audits/queue without this package needing to know
// about them directly.
func New(loader *playbook.Loader, repos Repositories, dispatcherFactory func(*ruleengine.Evaluator, *quiethours.Gate, string) *dispatch.Dispatcher, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{loader: loader, repos: repos, dispatcherFactory: dispatcherFactory, now: now}
}

// Run executes the named playbook either in dry-run or live mode.
func (r *Runner) Run(ctx context.Context, playbookName string, dryRun bool) (Result, error) {
	resolved, err := r.loader.Load(playbookName)
	if err != nil {
		return Result{}, err
	}
	pb := resolved.Playbook

	evaluator := ruleengine.NewEvaluator(r.now)

	rows, err := r.evaluateRows(ctx, resolved, evaluator)
	if err != nil {
		return Result{}, err
	}

	quietGate, err := quiethours.NewGate(pb.QuietHours)
	if err != nil {
		return Result{}, fmt.Errorf("building quiet-hours gate: %w", err)
	}

	dispatcher := r.dispatcherFactory(evaluator, quietGate, pb.Name)
	summary, err := dispatcher.Run(ctx, rows, pb.Actions, dryRun, pb.Name)
	if err != nil {
		return Result{}, err
	}

	matches, enqueued := 0, 0
	for _, s := range summary {
		matches += s.Matches
		enqueued += s.Enqueued
	}

	mode := "execute"
	if dryRun {
		mode = "dry_run"
	}

	return Result{
		Playbook:        pb.Name,
		Mode:            mode,
		TotalRows:       len(rows),
		MatchedActions:  matches,
		EnqueuedActions: enqueued,
		Summary:         summary,
	}, nil
}

func (r *Runner) evaluateRows(ctx context.Context, resolved playbook.Resolved, evaluator *ruleengine.Evaluator) ([]dispatch.EvaluatedRow, error) {
	reader := ingest.NewReader()
	workbook, err := reader.ReadSheet(resolved.SourcePath, nil)
	if err != nil {
		return nil, err
	}

	mappingData, err := readFile(resolved.MappingPath)
	if err != nil {
		return nil, err
	}
	mappingDoc, err := ingest.ParseMapping(mappingData)
	if err != nil {
		return nil, err
	}
	mapper := ingest.NewMapper(mappingDoc)

	tctx := ingest.TemplateContext{
		WorkbookLabel: strings.TrimSuffix(filepath.Base(resolved.SourcePath), filepath.Ext(resolved.SourcePath)),
		WorkbookStem:  strings.TrimSuffix(filepath.Base(resolved.SourcePath), filepath.Ext(resolved.SourcePath)),
	}
	resolutions, err := mapper.Resolve(workbook.Headers, tctx)
	if err != nil {
		return nil, err
	}

	normalizer := ingest.NewNormalizer(resolutions, r.now)
	normalized := normalizer.NormalizeWorkbook(workbook.Rows)

	rulesetData, err := readFile(resolved.RulesetPath)
	if err != nil {
		return nil, err
	}
	rulesetDoc, err := ruleengine.ParseRuleSet(rulesetData)
	if err != nil {
		return nil, err
	}
	ruleset, err := ruleengine.NewRuleSet(rulesetDoc.Rules)
	if err != nil {
		return nil, err
	}

	evaluated := make([]dispatch.EvaluatedRow, 0, len(normalized))
	for _, row := range normalized {
		if row.Skipped {
			continue
		}

		if err := r.persist(ctx, row); err != nil {
			return nil, err
		}

		fields := rowFields(row)
		rctx := ruleengine.NewContext(fields, nil)
		results, err := ruleset.Evaluate(evaluator, rctx)
		if err != nil {
			return nil, err
		}

		evaluated = append(evaluated, dispatch.EvaluatedRow{Row: fields, RuleResults: results})
	}
	return evaluated, nil
}

func (r *Runner) persist(ctx context.Context, row ingest.NormalizedRow) error {
	if r.repos.Courses != nil && row.CourseName != "" {
		if _, err := r.repos.Courses.UpsertByName(ctx, row.CourseName, row.CourseHoursRequired, row.CourseDeadlineDate, row.Email); err != nil {
			return fmt.Errorf("upserting course: %w", err)
		}
	}
	if r.repos.Learners != nil {
		if _, err := r.repos.Learners.UpsertByEmail(ctx, row.FullName, row.Email, row.CertificateExpiresAt); err != nil {
			return fmt.Errorf("upserting learner: %w", err)
		}
	}
	if r.repos.Enrollments != nil && row.CourseName != "" {
		attributes := map[string]any{
			"telefono":        row.Telefono,
			"raw_total_time":  row.RawTotalTime,
		}
		if row.FirstAccessAt != nil {
			attributes["first_access_at"] = row.FirstAccessAt.Format(time.RFC3339)
		}
		if row.LastAccessAt != nil {
			attributes["last_access_at"] = row.LastAccessAt.Format(time.RFC3339)
		}
		status := enrollmentStatus(row, r.now())
		if _, err := r.repos.Enrollments.UpsertByLearnerAndCourse(ctx, row.Email, row.CourseName, row.ProgressHours, status, attributes); err != nil {
			return fmt.Errorf("upserting enrollment: %w", err)
		}
	}
	return nil
}

// enrollmentStatus derives the Enrollment's lifecycle state from its
// ingested progress: completed once progress meets the course's
// required hours, overdue once the course deadline has passed without
// that happening, in_progress otherwise.
func enrollmentStatus(row ingest.NormalizedRow, now time.Time) domain.EnrollmentStatus {
	switch {
	case row.ProgressHours >= float64(row.CourseHoursRequired) && row.CourseHoursRequired > 0:
		return domain.EnrollmentStatusCompleted
	case !row.CourseDeadlineDate.IsZero() && row.CourseDeadlineDate.Before(now):
		return domain.EnrollmentStatusOverdue
	default:
		return domain.EnrollmentStatusInProgress
	}
}

// rowFields serializes a NormalizedRow into the map the Rule Engine
// and Action Renderer operate on. Date/time fields keep their native
// time.Time so the evaluator's days_until helper takes them directly,
// rather than round-tripping through ISO strings.
func rowFields(row ingest.NormalizedRow) map[string]any {
	fields := map[string]any{
		"full_name":             row.FullName,
		"email":                 row.Email,
		"telefono":              row.Telefono,
		"course_name":           row.CourseName,
		"course_hours_required": row.CourseHoursRequired,
		"course_deadline_date":  row.CourseDeadlineDate,
		"certificate_expires_at": row.CertificateExpiresAt,
		"progress_hours":        row.ProgressHours,
		"raw_total_time":        row.RawTotalTime,
	}
	if row.FirstAccessAt != nil {
		fields["first_access_at"] = *row.FirstAccessAt
	} else {
		fields["first_access_at"] = nil
	}
	if row.LastAccessAt != nil {
		fields["last_access_at"] = *row.LastAccessAt
	} else {
		fields["last_access_at"] = nil
	}
	return fields
}
