package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dockerlab-backend/internal/apierr"
	"github.com/yungbote/dockerlab-backend/internal/services"
)

// InstructorHandler serves the dashboard's read API plus the one
// destructive operation (removing a learner).
type InstructorHandler struct {
	students    services.StudentService
	leaderboard services.LeaderboardService
	statistics  services.StatisticsService
}

func NewInstructorHandler(students services.StudentService, leaderboard services.LeaderboardService, statistics services.StatisticsService) *InstructorHandler {
	return &InstructorHandler{
		students:    students,
		leaderboard: leaderboard,
		statistics:  statistics,
	}
}

func (ih *InstructorHandler) ListStudents(c *gin.Context) {
	students, err := ih.students.List(c.Request.Context())
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "list_failed", err))
		return
	}
	RespondOK(c, gin.H{"students": students, "count": len(students)})
}

func (ih *InstructorHandler) ListOnlineStudents(c *gin.Context) {
	students, err := ih.students.ListOnline(c.Request.Context())
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "list_failed", err))
		return
	}
	RespondOK(c, gin.H{"students": students, "count": len(students)})
}

func (ih *InstructorHandler) GetStudent(c *gin.Context) {
	detail, err := ih.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "get_failed", err))
		return
	}
	if detail == nil {
		RespondAPIError(c, apierr.New(http.StatusNotFound, "not_found", errors.New("unknown student")))
		return
	}
	RespondOK(c, detail)
}

func (ih *InstructorHandler) DeleteStudent(c *gin.Context) {
	removed, err := ih.students.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "delete_failed", err))
		return
	}
	if !removed {
		RespondAPIError(c, apierr.New(http.StatusNotFound, "not_found", errors.New("unknown student")))
		return
	}
	RespondOK(c, gin.H{"deleted": c.Param("id")})
}

func (ih *InstructorHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := ih.leaderboard.Top(c.Request.Context(), limit)
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "leaderboard_failed", err))
		return
	}
	RespondOK(c, gin.H{"leaderboard": entries})
}

func (ih *InstructorHandler) Statistics(c *gin.Context) {
	stats, err := ih.statistics.Overview(c.Request.Context())
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "statistics_failed", err))
		return
	}
	RespondOK(c, stats)
}

func (ih *InstructorHandler) ExerciseProgress(c *gin.Context) {
	rows, err := ih.statistics.PerExercise(c.Request.Context())
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "statistics_failed", err))
		return
	}
	RespondOK(c, gin.H{"exercises": rows})
}

func (ih *InstructorHandler) RecentEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := ih.statistics.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "events_failed", err))
		return
	}
	RespondOK(c, gin.H{"events": events, "count": len(events)})
}

func (ih *InstructorHandler) Activity(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	buckets, err := ih.statistics.Activity(c.Request.Context(), hours)
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "activity_failed", err))
		return
	}
	RespondOK(c, gin.H{"activity": buckets})
}
