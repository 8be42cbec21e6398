package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dockerlab-backend/internal/apierr"
	"github.com/yungbote/dockerlab-backend/internal/catalog"
	"github.com/yungbote/dockerlab-backend/internal/flaggen"
	"github.com/yungbote/dockerlab-backend/internal/ledger"
	"github.com/yungbote/dockerlab-backend/internal/verify"
)

// LabHandler serves the learner-facing API. The lab instance is bound to
// one learner identity; requests may override it per call for shared
// machines.
type LabHandler struct {
	engine    *verify.Engine
	cat       *catalog.Catalog
	led       ledger.Store
	studentID string
}

func NewLabHandler(engine *verify.Engine, cat *catalog.Catalog, led ledger.Store, studentID string) *LabHandler {
	return &LabHandler{
		engine:    engine,
		cat:       cat,
		led:       led,
		studentID: studentID,
	}
}

type submitRequest struct {
	StudentID string `json:"student_id"`
	Flag      string `json:"flag"`
}

func (lh *LabHandler) student(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return lh.studentID
}

// engineError folds the engine's sentinel failures into the HTTP error
// taxonomy; anything unrecognized is a server fault.
func engineError(code string, err error) *apierr.Error {
	if errors.Is(err, verify.ErrEmptyFlag) || errors.Is(err, verify.ErrStudentMissing) {
		return apierr.New(http.StatusBadRequest, "bad_request", err)
	}
	return apierr.New(http.StatusInternalServerError, code, err)
}

func (lh *LabHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondAPIError(c, apierr.New(http.StatusBadRequest, "bad_request", err))
		return
	}
	result, err := lh.engine.Submit(c.Request.Context(), lh.student(req.StudentID), req.Flag)
	if err != nil {
		RespondAPIError(c, engineError("submit_failed", err))
		return
	}
	RespondOK(c, result)
}

func (lh *LabHandler) Verify(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondAPIError(c, apierr.New(http.StatusBadRequest, "bad_request", err))
		return
	}
	result, err := lh.engine.DryRun(c.Request.Context(), lh.student(req.StudentID), req.Flag)
	if err != nil {
		RespondAPIError(c, engineError("verify_failed", err))
		return
	}
	RespondOK(c, result)
}

// categoryProgress tallies one category of the learner's progress view.
type categoryProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (lh *LabHandler) Progress(c *gin.Context) {
	studentID := lh.student(c.Query("student_id"))
	snap, err := lh.led.Snapshot(c.Request.Context(), studentID)
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "progress_failed", err))
		return
	}

	categories := make(map[string]categoryProgress)
	for _, ex := range lh.cat.Exercises() {
		cp := categories[ex.Category]
		cp.Total++
		if snap.HasCompleted(ex.ID) {
			cp.Completed++
		}
		categories[ex.Category] = cp
	}

	payload := gin.H{
		"student_id":      studentID,
		"completed":       snap.Completed,
		"completed_count": snap.CompletedCount(),
		"points":          snap.Points,
		"total_exercises": lh.cat.Len(),
		"max_points":      lh.cat.TotalPoints(),
		"categories":      categories,
	}
	if !snap.StartedAt.IsZero() {
		payload["started_at"] = snap.StartedAt
	}
	RespondOK(c, payload)
}

// Exercises lists the catalog with the learner's own state folded in.
// Tokens are derived client-side by construction, so handing the learner
// the token for an incomplete exercise gives away nothing: the live
// runtime check still has to pass.
func (lh *LabHandler) Exercises(c *gin.Context) {
	studentID := lh.student(c.Query("student_id"))
	snap, err := lh.led.Snapshot(c.Request.Context(), studentID)
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusInternalServerError, "exercises_failed", err))
		return
	}

	out := make([]gin.H, 0, lh.cat.Len())
	for _, ex := range lh.cat.Exercises() {
		row := gin.H{
			"id":          ex.ID,
			"name":        ex.Name,
			"description": ex.Description,
			"points":      ex.Points,
			"difficulty":  ex.Difficulty,
			"category":    ex.Category,
			"completed":   snap.HasCompleted(ex.ID),
		}
		if !snap.HasCompleted(ex.ID) {
			row["flag"] = flaggen.Derive(studentID, ex.ID, ex.Seed)
		}
		out = append(out, row)
	}
	RespondOK(c, gin.H{
		"student_id": studentID,
		"exercises":  out,
	})
}

func (lh *LabHandler) Hint(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		RespondAPIError(c, apierr.New(http.StatusBadRequest, "bad_request", err))
		return
	}
	ex, ok := lh.cat.ByID(id)
	if !ok {
		RespondAPIError(c, apierr.New(http.StatusNotFound, "not_found", errors.New("unknown exercise")))
		return
	}
	RespondOK(c, gin.H{
		"id":   ex.ID,
		"name": ex.Name,
		"hint": ex.Hint,
	})
}
