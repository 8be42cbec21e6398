package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
	"github.com/yungbote/dockerlab-backend/internal/sse"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// Notifier pushes one dashboard notification; delivery is best effort.
type Notifier interface {
	Notify(msg sse.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(sse.Message) {}

// StudentDetail is the instructor's drill-down view of one learner.
type StudentDetail struct {
	Student     *types.Student      `json:"student"`
	Completions []*types.Completion `json:"completions"`
	Sessions    []*types.Session    `json:"sessions"`
}

type StudentService interface {
	List(ctx context.Context) ([]*types.Student, error)
	ListOnline(ctx context.Context) ([]*types.Student, error)
	Get(ctx context.Context, document string) (*StudentDetail, error)
	Remove(ctx context.Context, document string) (bool, error)
}

type studentService struct {
	db               *gorm.DB
	log              *logger.Logger
	students         repos.StudentRepo
	completions      repos.CompletionRepo
	sessions         repos.SessionRepo
	notifier         Notifier
	heartbeatTimeout time.Duration
}

func NewStudentService(db *gorm.DB, log *logger.Logger, students repos.StudentRepo, completions repos.CompletionRepo, sessions repos.SessionRepo, notifier Notifier, heartbeatTimeout time.Duration) StudentService {
	serviceLog := log.With("service", "StudentService")
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 90 * time.Second
	}
	return &studentService{
		db:               db,
		log:              serviceLog,
		students:         students,
		completions:      completions,
		sessions:         sessions,
		notifier:         notifier,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// effectiveStatus derives liveness from last activity at read time.
// Nothing flips rows to offline in the background; staleness alone
// decides.
func effectiveStatus(lastSeen time.Time, timeout time.Duration, now time.Time) string {
	if now.Sub(lastSeen) < timeout {
		return "online"
	}
	return "offline"
}

func (s *studentService) List(ctx context.Context) ([]*types.Student, error) {
	students, err := s.students.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	now := time.Now().UTC()
	for _, st := range students {
		st.Status = effectiveStatus(st.LastSeen, s.heartbeatTimeout, now)
	}
	return students, nil
}

func (s *studentService) ListOnline(ctx context.Context) ([]*types.Student, error) {
	students, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	online := make([]*types.Student, 0, len(students))
	for _, st := range students {
		if st.Status == "online" {
			online = append(online, st)
		}
	}
	return online, nil
}

// Get returns (nil, nil) when the learner is unknown.
func (s *studentService) Get(ctx context.Context, document string) (*StudentDetail, error) {
	student, err := s.students.GetByDocument(ctx, nil, document)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, nil
	}
	student.Status = effectiveStatus(student.LastSeen, s.heartbeatTimeout, time.Now().UTC())

	completions, err := s.completions.GetByStudentID(ctx, nil, student.ID)
	if err != nil {
		return nil, fmt.Errorf("get completions: %w", err)
	}
	sessions, err := s.sessions.GetByStudentID(ctx, nil, student.ID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}
	return &StudentDetail{
		Student:     student,
		Completions: completions,
		Sessions:    sessions,
	}, nil
}

// Remove drops the learner and, through the cascading foreign keys, all
// completions, sessions and telemetry rows. The learner's own ledger is
// untouched; their next event recreates the row fresh.
func (s *studentService) Remove(ctx context.Context, document string) (bool, error) {
	removed, err := s.students.DeleteByDocument(ctx, nil, document)
	if err != nil {
		return false, fmt.Errorf("remove student: %w", err)
	}
	if removed {
		s.log.Info("student removed", "student_id", document)
		s.notifier.Notify(sse.Message{
			Channel: sse.ChannelDashboard,
			Event:   sse.EventStudentRemoved,
			Data:    map[string]any{"document": document},
		})
	}
	return removed, nil
}
