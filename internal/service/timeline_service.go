package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-timeline/internal/config"
	"github.com/noah-isme/gema-activity-timeline/internal/dto"
	"github.com/noah-isme/gema-activity-timeline/internal/models"
	"github.com/noah-isme/gema-activity-timeline/internal/observability"
	"github.com/noah-isme/gema-activity-timeline/internal/repository"
	"github.com/noah-isme/gema-activity-timeline/internal/timeline"
)

const (
	timelineGenerationKey = "timeline:generation"
	minTimelinePageSize   = 20
)

var (
	// ErrUnknownSubject is returned for subject aliases missing from the registry.
	ErrUnknownSubject = errors.New("unknown timeline subject")
	// ErrUnknownRelation is returned for relation names the subject does not declare.
	ErrUnknownRelation = errors.New("unknown timeline relation")
)

// Options customises a single timeline build. Request values win over the
// option values, which win over configuration defaults.
type Options struct {
	Relations []string
	Limit     int
	Locale    string
	// Scopes refine the activity query, e.g. to a single event kind.
	Scopes []func(*gorm.DB) *gorm.DB
	// ActivitiesUsing bypasses the activity query with a caller supplied collection.
	ActivitiesUsing func(ctx context.Context, root models.Record) ([]models.Activity, error)
	// ModifyTitle replaces the default entry title when ShouldModifyTitle
	// allows it. A nil ShouldModifyTitle always allows it.
	ModifyTitle       func(entry timeline.Entry) string
	ShouldModifyTitle func(entry timeline.Entry) bool
}

func (o Options) cacheable() bool {
	return len(o.Scopes) == 0 && o.ActivitiesUsing == nil && o.ModifyTitle == nil && o.ShouldModifyTitle == nil
}

// TimelineService builds activity timelines for registered subjects.
type TimelineService interface {
	Build(ctx context.Context, req dto.TimelineRequest, opts Options) (dto.TimelineResponse, error)
	RenderPanel(ctx context.Context, req dto.TimelineRequest, opts Options) (string, error)
	Invalidate(ctx context.Context) error
}

type timelineService struct {
	activities repository.ActivityRepository
	records    repository.RecordRepository
	formatter  *timeline.Formatter
	renderer   *timeline.Renderer
	settings   config.Timeline
	validator  *validator.Validate
	cache      *redis.Client
	logger     zerolog.Logger
	tracer     trace.Tracer
}

type resolvedRequest struct {
	alias     string
	subject   config.Subject
	id        uint
	relations []string
	limit     int
	locale    string
}

type builtTimeline struct {
	subject dto.TimelineSubject
	limit   int
	panel   timeline.Panel
}

// NewTimelineService constructs the timeline service. cache may be nil; a
// zero cache TTL in settings disables caching as well.
func NewTimelineService(
	activities repository.ActivityRepository,
	records repository.RecordRepository,
	renderer *timeline.Renderer,
	settings config.Timeline,
	validate *validator.Validate,
	cache *redis.Client,
	logger zerolog.Logger,
) TimelineService {
	settings = settings.WithDefaults()
	if settings.CacheTTL <= 0 {
		cache = nil
	}
	return &timelineService{
		activities: activities,
		records:    records,
		formatter:  timeline.NewFormatter(settings),
		renderer:   renderer,
		settings:   settings,
		validator:  validate,
		cache:      cache,
		logger:     logger.With().Str("component", "timeline_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-activity-timeline/internal/service/timeline"),
	}
}

func (s *timelineService) Build(ctx context.Context, req dto.TimelineRequest, opts Options) (dto.TimelineResponse, error) {
	start := time.Now()
	defer func() {
		observability.TimelineLatency().WithLabelValues("json").Observe(time.Since(start).Seconds())
	}()

	resolved, err := s.resolve(req, opts)
	if err != nil {
		observability.TimelineRequests().WithLabelValues("json", "invalid").Inc()
		return dto.TimelineResponse{}, err
	}

	cacheKey := s.cacheKey(ctx, "json", resolved, opts)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.TimelineResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				for i := range response.Entries {
					response.Entries[i].Since = s.renderer.Since(response.Entries[i].UpdatedAt)
				}
				response.CacheHit = true
				observability.TimelineRequests().WithLabelValues("json", "hit").Inc()
				return response, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read timeline cache")
		}
	}

	built, err := s.build(ctx, resolved, opts)
	if err != nil {
		observability.TimelineRequests().WithLabelValues("json", "error").Inc()
		return dto.TimelineResponse{}, err
	}

	entries := make([]dto.TimelineEntryResponse, 0, len(built.panel.Entries))
	for _, entry := range built.panel.Entries {
		entries = append(entries, dto.NewTimelineEntryResponse(entry))
	}

	response := dto.TimelineResponse{
		Subject:     built.subject,
		Locale:      built.panel.Locale,
		Heading:     built.panel.Heading,
		Description: built.panel.Description,
		Limit:       built.limit,
		Entries:     entries,
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.settings.CacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write timeline cache")
			}
		}
	}

	observability.TimelineRequests().WithLabelValues("json", "miss").Inc()
	observability.TimelineEntries().Observe(float64(len(entries)))

	return response, nil
}

func (s *timelineService) RenderPanel(ctx context.Context, req dto.TimelineRequest, opts Options) (string, error) {
	start := time.Now()
	defer func() {
		observability.TimelineLatency().WithLabelValues("html").Observe(time.Since(start).Seconds())
	}()

	resolved, err := s.resolve(req, opts)
	if err != nil {
		observability.TimelineRequests().WithLabelValues("html", "invalid").Inc()
		return "", err
	}

	cacheKey := s.cacheKey(ctx, "html", resolved, opts)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var panel timeline.Panel
			if err := json.Unmarshal([]byte(cached), &panel); err == nil {
				for i := range panel.Entries {
					panel.Entries[i].Since = s.renderer.Since(panel.Entries[i].UpdatedAt)
				}
				if markup, err := s.renderer.RenderPanel(panel); err == nil {
					observability.TimelineRequests().WithLabelValues("html", "hit").Inc()
					return markup, nil
				}
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read timeline cache")
		}
	}

	built, err := s.build(ctx, resolved, opts)
	if err != nil {
		observability.TimelineRequests().WithLabelValues("html", "error").Inc()
		return "", err
	}

	markup, err := s.renderer.RenderPanel(built.panel)
	if err != nil {
		observability.TimelineRequests().WithLabelValues("html", "error").Inc()
		return "", err
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(built.panel); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.settings.CacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write timeline cache")
			}
		}
	}

	observability.TimelineRequests().WithLabelValues("html", "miss").Inc()
	observability.TimelineEntries().Observe(float64(len(built.panel.Entries)))

	return markup, nil
}

// Invalidate bumps the cache generation so every cached timeline is ignored.
func (s *timelineService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Incr(ctx, timelineGenerationKey).Err(); err != nil {
		return fmt.Errorf("bump timeline cache generation: %w", err)
	}
	return nil
}

func (s *timelineService) resolve(req dto.TimelineRequest, opts Options) (resolvedRequest, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Locale = strings.ToLower(strings.TrimSpace(req.Locale))
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return resolvedRequest{}, err
		}
	}

	subject, ok := s.settings.Subjects[req.Subject]
	if !ok || subject.Type == "" || subject.Table == "" {
		return resolvedRequest{}, fmt.Errorf("%w: %s", ErrUnknownSubject, req.Subject)
	}

	relations := req.Relations
	if len(relations) == 0 {
		relations = opts.Relations
	}
	for _, name := range relations {
		if _, ok := subject.Relation(name); !ok {
			return resolvedRequest{}, fmt.Errorf("%w: %s", ErrUnknownRelation, name)
		}
	}

	return resolvedRequest{
		alias:     req.Subject,
		subject:   subject,
		id:        req.SubjectID,
		relations: relations,
		limit:     firstPositive(req.Limit, opts.Limit, s.settings.Limit),
		locale:    firstNonEmpty(req.Locale, strings.ToLower(opts.Locale), s.settings.Locale),
	}, nil
}

func (s *timelineService) build(ctx context.Context, req resolvedRequest, opts Options) (builtTimeline, error) {
	ctx, span := s.tracer.Start(ctx, "timeline.build", trace.WithAttributes(
		attribute.String("timeline.subject_type", req.subject.Type),
		attribute.Int64("timeline.subject_id", int64(req.id)),
		attribute.Int("timeline.limit", req.limit),
		attribute.String("timeline.locale", req.locale),
	))
	defer span.End()

	subjectInfo := dto.TimelineSubject{
		Alias: req.alias,
		Type:  req.subject.Type,
		ID:    req.id,
		Label: timeline.SubjectLabel(req.subject.Type, s.settings.SubjectTranslations),
	}

	attrs, err := s.records.Find(ctx, req.subject.Table, req.id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_subject_failed")
		return builtTimeline{}, err
	}
	if attrs == nil {
		span.SetAttributes(attribute.Bool("timeline.subject_exists", false))
		return builtTimeline{
			subject: subjectInfo,
			limit:   req.limit,
			panel:   s.renderer.Panel(req.locale, req.limit, nil),
		}, nil
	}
	subjectInfo.Exists = true

	root := models.Record{Type: req.subject.Type, ID: req.id, Attributes: attrs}

	var entries []timeline.Entry
	if opts.ActivitiesUsing != nil {
		activities, err := opts.ActivitiesUsing(ctx, root)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "activities_override_failed")
			return builtTimeline{}, err
		}
		entries = s.format(ctx, root, activities)
	} else {
		refs, err := s.subjectRefs(ctx, req, root)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve_relations_failed")
			return builtTimeline{}, err
		}
		entries, err = s.collect(ctx, root, refs, opts.Scopes, req.limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list_activities_failed")
			return builtTimeline{}, err
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > req.limit {
		entries = entries[:req.limit]
	}

	for i := range entries {
		s.renderer.RenderEntry(&entries[i], req.locale)
		if opts.ModifyTitle != nil && (opts.ShouldModifyTitle == nil || opts.ShouldModifyTitle(entries[i])) {
			entries[i].Title = s.renderer.SanitizeTitle(opts.ModifyTitle(entries[i]))
		}
	}

	span.SetAttributes(attribute.Int("timeline.entries", len(entries)))

	return builtTimeline{
		subject: subjectInfo,
		limit:   req.limit,
		panel:   s.renderer.Panel(req.locale, req.limit, entries),
	}, nil
}

func (s *timelineService) subjectRefs(ctx context.Context, req resolvedRequest, root models.Record) ([]repository.SubjectRef, error) {
	refs := []repository.SubjectRef{{Type: root.Type, IDs: []uint{root.ID}}}
	for _, name := range req.relations {
		relation, _ := req.subject.Relation(name)
		ids, err := s.records.RelatedIDs(ctx, relation.Table, relation.ForeignKey, root.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, repository.SubjectRef{Type: relation.Type, IDs: ids})
	}
	return refs, nil
}

// collect pages through the newest activities until limit non-empty entries
// are formatted or the log is exhausted.
func (s *timelineService) collect(ctx context.Context, root models.Record, refs []repository.SubjectRef, scopes []func(*gorm.DB) *gorm.DB, limit int) ([]timeline.Entry, error) {
	pageSize := limit * 2
	if pageSize < minTimelinePageSize {
		pageSize = minTimelinePageSize
	}

	entries := make([]timeline.Entry, 0, limit)
	for offset := 0; len(entries) < limit; offset += pageSize {
		page, err := s.activities.List(ctx, repository.ActivityQuery{
			Subjects: refs,
			Offset:   offset,
			Limit:    pageSize,
			Scopes:   scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("list activities: %w", err)
		}

		entries = append(entries, s.format(ctx, root, page)...)
		if len(page) < pageSize {
			break
		}
	}

	return entries, nil
}

func (s *timelineService) format(ctx context.Context, root models.Record, activities []models.Activity) []timeline.Entry {
	s.hydrate(ctx, activities)

	entries := make([]timeline.Entry, 0, len(activities))
	for _, activity := range activities {
		entry, ok := s.formatter.Format(activity, root)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// hydrate attaches subject and causer rows. Lookup failures are logged and
// leave the reference empty so rendering falls back to placeholders.
func (s *timelineService) hydrate(ctx context.Context, activities []models.Activity) {
	subjects := make(map[string][]uint)
	causers := make(map[string][]uint)
	for _, activity := range activities {
		if activity.SubjectType != "" && activity.SubjectID != nil {
			subjects[activity.SubjectType] = append(subjects[activity.SubjectType], *activity.SubjectID)
		}
		if activity.CauserType != "" && activity.CauserID != nil {
			causers[activity.CauserType] = append(causers[activity.CauserType], *activity.CauserID)
		}
	}

	subjectRows := s.loadRecords(ctx, subjects)
	causerRows := s.loadRecords(ctx, causers)

	for i := range activities {
		activity := &activities[i]
		if rows, ok := subjectRows[activity.SubjectType]; ok {
			if attrs, ok := rows[activity.SubjectKey()]; ok {
				activity.Subject = &models.Record{Type: activity.SubjectType, ID: activity.SubjectKey(), Attributes: attrs}
			}
		}
		if rows, ok := causerRows[activity.CauserType]; ok {
			if attrs, ok := rows[activity.CauserKey()]; ok {
				activity.Causer = &models.Record{Type: activity.CauserType, ID: activity.CauserKey(), Attributes: attrs}
			}
		}
	}
}

func (s *timelineService) loadRecords(ctx context.Context, idsByType map[string][]uint) map[string]map[uint]map[string]interface{} {
	loaded := make(map[string]map[uint]map[string]interface{}, len(idsByType))
	for modelType, ids := range idsByType {
		table, ok := s.settings.TableFor(modelType)
		if !ok {
			s.logger.Debug().Str("model_type", modelType).Msg("no table registered for model type")
			continue
		}
		rows, err := s.records.FindMany(ctx, table, uniqueIDs(ids))
		if err != nil {
			s.logger.Warn().Err(err).Str("model_type", modelType).Msg("failed to load timeline records")
			continue
		}
		loaded[modelType] = rows
	}
	return loaded
}

func (s *timelineService) cacheKey(ctx context.Context, kind string, req resolvedRequest, opts Options) string {
	if s.cache == nil || !opts.cacheable() {
		return ""
	}

	generation, err := s.cache.Get(ctx, timelineGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to read timeline cache generation")
		return ""
	}

	return fmt.Sprintf("timeline:v2:%s:%d:%s:%d:%s:%d:%s", kind, generation, req.alias, req.id, strings.Join(req.relations, ","), req.limit, req.locale)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func firstPositive(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return config.DefaultLimit
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return config.DefaultLocale
}
