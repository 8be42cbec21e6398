package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/catalog"
	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// Statistics is the cohort-wide overview panel.
type Statistics struct {
	TotalStudents     int                `json:"total_students"`
	OnlineStudents    int                `json:"online_students"`
	TotalCompletions  int64              `json:"total_completions"`
	AverageProgress   float64            `json:"average_progress"`
	AveragePoints     float64            `json:"average_points"`
	CompletionRate    float64            `json:"completion_rate"`
	TotalExercises    int                `json:"total_exercises"`
	MaxPoints         int                `json:"max_points"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// ExerciseProgress is the cohort completion picture of one exercise.
type ExerciseProgress struct {
	ExerciseID     int     `json:"exercise_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Difficulty     string  `json:"difficulty"`
	Points         int     `json:"points"`
	Completions    int64   `json:"completions"`
	CompletionRate float64 `json:"completion_rate"`
}

type StatisticsService interface {
	Overview(ctx context.Context) (*Statistics, error)
	PerExercise(ctx context.Context) ([]ExerciseProgress, error)
	RecentEvents(ctx context.Context, limit int) ([]*types.TelemetryEvent, error)
	Activity(ctx context.Context, hours int) ([]repos.ActivityBucket, error)
}

type statisticsService struct {
	db               *gorm.DB
	log              *logger.Logger
	cat              *catalog.Catalog
	students         repos.StudentRepo
	completions      repos.CompletionRepo
	events           repos.TelemetryEventRepo
	heartbeatTimeout time.Duration
}

func NewStatisticsService(db *gorm.DB, log *logger.Logger, cat *catalog.Catalog, students repos.StudentRepo, completions repos.CompletionRepo, events repos.TelemetryEventRepo, heartbeatTimeout time.Duration) StatisticsService {
	serviceLog := log.With("service", "StatisticsService")
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 90 * time.Second
	}
	return &statisticsService{
		db:               db,
		log:              serviceLog,
		cat:              cat,
		students:         students,
		completions:      completions,
		events:           events,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// Overview computes every aggregate over the current cohort. An empty
// cohort yields zeroes across the board, never a division error.
func (s *statisticsService) Overview(ctx context.Context) (*Statistics, error) {
	students, err := s.students.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	totalCompletions, err := s.completions.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	tallies, err := s.completions.CountByExercise(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count by exercise: %w", err)
	}

	now := time.Now().UTC()
	stats := &Statistics{
		TotalStudents:     len(students),
		TotalCompletions:  totalCompletions,
		TotalExercises:    s.cat.Len(),
		MaxPoints:         s.cat.TotalPoints(),
		CategoryBreakdown: map[string]float64{},
		GeneratedAt:       now,
	}

	var progressSum, pointsSum float64
	for _, st := range students {
		if effectiveStatus(st.LastSeen, s.heartbeatTimeout, now) == "online" {
			stats.OnlineStudents++
		}
		progressSum += st.ProgressPercent
		pointsSum += float64(st.TotalPoints)
	}
	if len(students) > 0 {
		stats.AverageProgress = progressSum / float64(len(students))
		stats.AveragePoints = pointsSum / float64(len(students))
		possible := float64(len(students) * s.cat.Len())
		if possible > 0 {
			stats.CompletionRate = float64(totalCompletions) / possible * 100
		}
	}

	// Per-category completion rate: share of a category's possible
	// completions that the cohort has claimed.
	catSize := map[string]int{}
	for _, ex := range s.cat.Exercises() {
		catSize[ex.Category]++
		stats.CategoryBreakdown[ex.Category] = 0
	}
	if len(students) > 0 {
		catDone := map[string]int64{}
		for _, tally := range tallies {
			if ex, ok := s.cat.ByID(tally.ExerciseID); ok {
				catDone[ex.Category] += tally.Completions
			}
		}
		for cat, size := range catSize {
			possible := float64(size * len(students))
			if possible > 0 {
				stats.CategoryBreakdown[cat] = float64(catDone[cat]) / possible * 100
			}
		}
	}
	return stats, nil
}

// PerExercise covers the whole catalog; exercises nobody completed show
// zero instead of disappearing.
func (s *statisticsService) PerExercise(ctx context.Context) ([]ExerciseProgress, error) {
	students, err := s.students.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	tallies, err := s.completions.CountByExercise(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count by exercise: %w", err)
	}

	byExercise := make(map[int]int64, len(tallies))
	for _, tally := range tallies {
		byExercise[tally.ExerciseID] = tally.Completions
	}

	cohort := float64(len(students))
	out := make([]ExerciseProgress, 0, s.cat.Len())
	for _, ex := range s.cat.Exercises() {
		row := ExerciseProgress{
			ExerciseID:  ex.ID,
			Name:        ex.Name,
			Category:    ex.Category,
			Difficulty:  ex.Difficulty,
			Points:      ex.Points,
			Completions: byExercise[ex.ID],
		}
		if cohort > 0 {
			row.CompletionRate = float64(row.Completions) / cohort * 100
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *statisticsService) RecentEvents(ctx context.Context, limit int) ([]*types.TelemetryEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	events, err := s.events.GetRecent(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

func (s *statisticsService) Activity(ctx context.Context, hours int) ([]repos.ActivityBucket, error) {
	if hours <= 0 || hours > 24*30 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	buckets, err := s.events.HourlyActivity(ctx, nil, since)
	if err != nil {
		return nil, fmt.Errorf("hourly activity: %w", err)
	}
	return buckets, nil
}
