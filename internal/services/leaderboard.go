package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
)

// LeaderboardEntry is one ranked row. Rank starts at 1.
type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	Document        string    `json:"document"`
	Status          string    `json:"status"`
	TotalPoints     int       `json:"total_points"`
	CompletedCount  int       `json:"completed_count"`
	ProgressPercent float64   `json:"progress_percent"`
	FirstSeen       time.Time `json:"first_seen"`
}

type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

type leaderboardService struct {
	db               *gorm.DB
	log              *logger.Logger
	students         repos.StudentRepo
	heartbeatTimeout time.Duration
}

func NewLeaderboardService(db *gorm.DB, log *logger.Logger, students repos.StudentRepo, heartbeatTimeout time.Duration) LeaderboardService {
	serviceLog := log.With("service", "LeaderboardService")
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 90 * time.Second
	}
	return &leaderboardService{
		db:               db,
		log:              serviceLog,
		students:         students,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// Top ranks by points, then completions, then earliest arrival. The
// whole cohort fits in memory (a classroom, not a planet), so ranking in
// Go keeps the tie-break rules in one obvious place.
func (s *leaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	students, err := s.students.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	sort.SliceStable(students, func(i, j int) bool {
		if students[i].TotalPoints != students[j].TotalPoints {
			return students[i].TotalPoints > students[j].TotalPoints
		}
		if students[i].CompletedCount != students[j].CompletedCount {
			return students[i].CompletedCount > students[j].CompletedCount
		}
		return students[i].FirstSeen.Before(students[j].FirstSeen)
	})

	if limit > 0 && len(students) > limit {
		students = students[:limit]
	}

	now := time.Now().UTC()
	entries := make([]LeaderboardEntry, 0, len(students))
	for i, st := range students {
		entries = append(entries, LeaderboardEntry{
			Rank:            i + 1,
			Document:        st.Document,
			Status:          effectiveStatus(st.LastSeen, s.heartbeatTimeout, now),
			TotalPoints:     st.TotalPoints,
			CompletedCount:  st.CompletedCount,
			ProgressPercent: st.ProgressPercent,
			FirstSeen:       st.FirstSeen,
		})
	}
	return entries, nil
}
