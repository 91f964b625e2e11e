package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/roster/internal/aliasing"
	"github.com/correlator-io/roster/internal/canonicalization"
	"github.com/correlator-io/roster/internal/records"
	"github.com/correlator-io/roster/internal/search"
)

const failedRunRecordTimeout = 5 * time.Second

type (
	// LoadNotifier is told about every committed load run.
	// Notification failures are logged and never fail the run.
	LoadNotifier interface {
		NotifyLoadCompleted(ctx context.Context, report *records.LoadReport) error
	}

	// LoadStore applies load plans to PostgreSQL and serves the search-profile read model.
	//
	// One Run is one transaction: every batch commits together or nothing does. Runs are
	// expected to be issued by a single writer at a time; PostgreSQL row locks are the only
	// coordination.
	LoadStore struct {
		conn               *Connection
		logger             *slog.Logger
		aliases            *aliasing.Resolver
		notifier           LoadNotifier
		validator          *records.Validator
		skipViewRefresh    bool
		viewRefreshTimeout time.Duration
		strictValidation   bool
	}

	// LoadStoreOption configures optional LoadStore behavior.
	LoadStoreOption func(*LoadStore)
)

// Compile-time interface checks.
var (
	_ records.Loader = (*LoadStore)(nil)
	_ search.Store   = (*LoadStore)(nil)
)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) LoadStoreOption {
	return func(s *LoadStore) {
		s.logger = logger
	}
}

// WithAliasResolver routes dimension names through r before normalization.
func WithAliasResolver(r *aliasing.Resolver) LoadStoreOption {
	return func(s *LoadStore) {
		s.aliases = r
	}
}

// WithNotifier publishes a notification after every committed run.
func WithNotifier(n LoadNotifier) LoadStoreOption {
	return func(s *LoadStore) {
		s.notifier = n
	}
}

// WithSkipViewRefresh disables the post-commit view refresh.
func WithSkipViewRefresh(skip bool) LoadStoreOption {
	return func(s *LoadStore) {
		s.skipViewRefresh = skip
	}
}

// WithViewRefreshTimeout bounds the post-commit view refresh. Non-positive values are ignored.
func WithViewRefreshTimeout(d time.Duration) LoadStoreOption {
	return func(s *LoadStore) {
		if d > 0 {
			s.viewRefreshTimeout = d
		}
	}
}

// WithStrictValidation makes the first invalid record fail the run instead of being skipped.
func WithStrictValidation(strict bool) LoadStoreOption {
	return func(s *LoadStore) {
		s.strictValidation = strict
	}
}

// WithConfig applies the load settings from cfg.
func WithConfig(cfg *Config) LoadStoreOption {
	return func(s *LoadStore) {
		s.skipViewRefresh = cfg.SkipViewRefresh
		s.strictValidation = cfg.StrictValidation

		if cfg.ViewRefreshTimeout > 0 {
			s.viewRefreshTimeout = cfg.ViewRefreshTimeout
		}
	}
}

// NewLoadStore creates a PostgreSQL-backed load store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewLoadStore(conn *Connection, opts ...LoadStoreOption) (*LoadStore, error) {
	if conn == nil || conn.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	s := &LoadStore{
		conn:               conn,
		logger:             slog.Default(),
		validator:          records.NewValidator(),
		viewRefreshTimeout: defaultViewRefreshTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// HealthCheck verifies the database is reachable.
func (s *LoadStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Close releases the connection pool.
func (s *LoadStore) Close() error {
	return s.conn.Close()
}

// Run applies plan in dependency order inside one transaction.
//
// On success the returned report carries per-table counts and warnings for skipped records.
// On failure nothing is committed and the error is a *records.LoadError naming the table and
// natural key involved. The search views are refreshed after commit unless disabled; a refresh
// failure is recorded in the report and does not fail the run.
func (s *LoadStore) Run(ctx context.Context, plan *records.LoadPlan) (*records.LoadReport, error) {
	if plan == nil {
		plan = &records.LoadPlan{}
	}

	report := records.NewLoadReport(uuid.New())
	report.PlanChecksum = planChecksum(plan)

	logger := s.logger.With(slog.String("run_id", report.RunID.String()))

	logger.Info("Load run started",
		slog.Int("records", plan.Total()),
		slog.String("plan_checksum", report.PlanChecksum),
		slog.Bool("strict_validation", s.strictValidation),
	)

	if err := s.runInTransaction(ctx, plan, report, logger); err != nil {
		if isCancellation(err) {
			logger.Warn("Load run cancelled, transaction rolled back", slog.Any("error", err))
		} else {
			logger.Error("Load run failed, transaction rolled back", slog.Any("error", err))
		}

		s.recordFailedRun(ctx, report, err, logger)

		return nil, err
	}

	report.CompletedAt = time.Now().UTC()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)

	totals := report.Totals()

	logger.Info("Load run committed",
		slog.Int("inserted", totals.Inserted),
		slog.Int("updated", totals.Updated),
		slog.Int("skipped", totals.Skipped),
		slog.Duration("duration", report.Duration),
	)

	if s.skipViewRefresh {
		logger.Info("Search view refresh skipped")
	} else {
		s.refreshAfterLoad(ctx, report, logger)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyLoadCompleted(ctx, report); err != nil {
			logger.Warn("Failed to publish load completed event", slog.Any("error", err))
		}
	}

	return report, nil
}

func (s *LoadStore) runInTransaction(
	ctx context.Context,
	plan *records.LoadPlan,
	report *records.LoadReport,
	logger *slog.Logger,
) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(loadRunsTable, report.RunID.String(), err)
	}

	defer func() {
		_ = tx.Rollback() // No-op after a successful commit.
	}()

	if err := insertRunRecord(ctx, tx, report); err != nil {
		return err
	}

	run := &loadRun{
		tx:        tx,
		resolver:  NewResolver(tx, s.aliases),
		validator: s.validator,
		report:    report,
		logger:    logger,
		strict:    s.strictValidation,
	}

	for _, kind := range records.DependencyOrder() {
		if err := run.apply(ctx, kind, plan); err != nil {
			return err
		}
	}

	if err := completeRunRecord(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(loadRunsTable, report.RunID.String(), err)
	}

	logger.Debug("Resolver statistics", slog.Int("statements", run.resolver.Statements()))

	return nil
}

func (s *LoadStore) refreshAfterLoad(ctx context.Context, report *records.LoadReport, logger *slog.Logger) {
	refreshCtx, cancel := context.WithTimeout(ctx, s.viewRefreshTimeout)
	defer cancel()

	if err := s.RefreshViews(refreshCtx); err != nil {
		report.ViewError = err.Error()

		logger.Warn("Search view refresh failed, committed data is unaffected",
			slog.Any("error", err),
			slog.Duration("timeout", s.viewRefreshTimeout),
		)

		return
	}

	report.ViewRefreshed = true
}

// recordFailedRun writes the audit row for a rolled-back run. Best effort: the caller's
// context may already be cancelled, so a detached one with a short timeout is used.
func (s *LoadStore) recordFailedRun(ctx context.Context, report *records.LoadReport, runErr error, logger *slog.Logger) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedRunRecordTimeout)
	defer cancel()

	if err := insertFailedRunRecord(auditCtx, s.conn.DB, report, runErr); err != nil {
		logger.Warn("Failed to record failed load run", slog.Any("error", err))
	}
}

func planChecksum(plan *records.LoadPlan) string {
	payload, err := json.Marshal(plan)
	if err != nil {
		return ""
	}

	return canonicalization.GeneratePlanChecksum(payload)
}

// loadRun is the per-run state: transaction, resolver cache and report.
type loadRun struct {
	tx        *sql.Tx
	resolver  *Resolver
	validator *records.Validator
	report    *records.LoadReport
	logger    *slog.Logger
	strict    bool
}

func (l *loadRun) apply(ctx context.Context, kind records.EntityKind, plan *records.LoadPlan) error {
	if err := ctx.Err(); err != nil {
		return records.NewLoadError(string(kind), "", fmt.Errorf("%w: %w", records.ErrLoadFailed, err))
	}

	switch kind {
	case records.KindPerson:
		return l.loadPersons(ctx, plan.Persons)
	case records.KindProfile:
		return l.loadProfiles(ctx, plan.Profiles)
	case records.KindDimension:
		return l.loadDimensions(ctx, plan)
	case records.KindTechnologyLink:
		return l.loadTechnologyLinks(ctx, plan.TechnologyLinks)
	case records.KindLanguageLink:
		return l.loadLanguageLinks(ctx, plan.LanguageLinks)
	case records.KindProjectExperience:
		return l.loadProjectExperiences(ctx, plan.ProjectExperiences)
	case records.KindWorkExperience:
		return loadSections(ctx, l, workExperienceSpec, plan.WorkExperiences, workExperienceSection)
	case records.KindCertification:
		return loadSections(ctx, l, certificationSpec, plan.Certifications, certificationSection)
	case records.KindCourse:
		return loadSections(ctx, l, courseSpec, plan.Courses, courseSection)
	case records.KindEducation:
		return loadSections(ctx, l, educationSpec, plan.Educations, educationSection)
	case records.KindPosition:
		return loadSections(ctx, l, positionSpec, plan.Positions, positionSection)
	case records.KindBlogPublication:
		return loadSections(ctx, l, blogPublicationSpec, plan.BlogPublications, blogPublicationSection)
	case records.KindKeyQualification:
		return loadSections(ctx, l, keyQualificationSpec, plan.KeyQualifications, keyQualificationSection)
	case records.KindCvRole:
		return loadSections(ctx, l, cvRoleSpec, plan.CvRoles, cvRoleSection)
	case records.KindClearanceGrant:
		return l.loadClearanceGrants(ctx, plan.ClearanceGrants)
	case records.KindAvailability:
		return l.loadAvailability(ctx, plan.Availability)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEntityKind, kind)
	}
}

// reject handles a record that failed validation: a warning normally, a fatal
// ErrInvalidRecord in strict mode.
func (l *loadRun) reject(table, key string, cause error) error {
	if l.strict {
		return records.NewLoadError(table, key, fmt.Errorf("%w: %w", records.ErrInvalidRecord, cause))
	}

	l.logger.Warn("Skipping invalid record",
		slog.String("table", table),
		slog.String("key", key),
		slog.String("reason", cause.Error()),
	)
	l.report.Warn(table, key, cause.Error())

	return nil
}

// note records the repairs made to a record that is still loaded.
func (l *loadRun) note(table, key string, notes []string) {
	for _, n := range notes {
		l.logger.Warn("Repaired record",
			slog.String("table", table),
			slog.String("key", key),
			slog.String("reason", n),
		)
		l.report.Note(table, key, n)
	}
}

// ownerError re-labels an owner lookup failure with the table and key of the dependent row.
func ownerError(table, key string, err error) error {
	if le, ok := records.AsLoadError(err); ok {
		return records.NewLoadError(table, key, le.Err)
	}

	return err
}
