package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"care-planner/internal/model"
	"care-planner/internal/reconcile"
)

type createCarePlanRequest struct {
	Date        string `json:"date" binding:"required"`
	PatientName string `json:"patient_name"`
}

type inviteRequest struct {
	Name string `json:"name" binding:"required"`
}

// inviteResponse is the one payload that exposes an invite code.
type inviteResponse struct {
	model.Caregiver
	InviteCode string `json:"invite_code"`
}

type noteRequest struct {
	Note string `json:"note" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.cache != nil {
		body["cache"] = s.cache.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// createCarePlan handles POST /api/care-plans.
func (s *Server) createCarePlan(c *gin.Context) {
	var req createCarePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	plan, err := s.plans.Create(c.Request.Context(), currentUser(c), req.Date, req.PatientName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// listCarePlans handles GET /api/care-plans.
func (s *Server) listCarePlans(c *gin.Context) {
	plans, err := s.plans.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// getCarePlan handles GET /api/care-plans/:id.
func (s *Server) getCarePlan(c *gin.Context) {
	plan, role, err := s.plans.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("X-Care-Plan-Role", string(role))
	c.JSON(http.StatusOK, plan)
}

// deleteCarePlan handles DELETE /api/care-plans/:id.
func (s *Server) deleteCarePlan(c *gin.Context) {
	if err := s.plans.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// patchTasks handles PATCH /api/care-plans/:id/tasks and returns the new
// ordered task list.
func (s *Server) patchTasks(c *gin.Context) {
	var batch reconcile.RowBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row batch", "details": err.Error()})
		return
	}
	plan, err := s.plans.ApplyTaskRows(c.Request.Context(), currentUser(c), c.Param("id"), batch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.Tasks)
}

// patchQuestions handles PATCH /api/care-plans/:id/questions.
func (s *Server) patchQuestions(c *gin.Context) {
	var batch reconcile.RowBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row batch", "details": err.Error()})
		return
	}
	plan, err := s.plans.ApplyQuestionRows(c.Request.Context(), currentUser(c), c.Param("id"), batch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.Questions)
}

// importVoiceMemo handles POST /api/care-plans/:id/voice-memo. The body is the
// raw recording.
func (s *Server) importVoiceMemo(c *gin.Context) {
	audio, ok := s.readAudio(c)
	if !ok {
		return
	}
	plan, err := s.plans.ImportVoiceMemo(c.Request.Context(), currentUser(c), c.Param("id"), audio, c.ContentType())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// answerByVoice handles POST /api/care-plans/:id/questions/:qid/voice-answer.
func (s *Server) answerByVoice(c *gin.Context) {
	audio, ok := s.readAudio(c)
	if !ok {
		return
	}
	plan, err := s.plans.AnswerByVoice(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("qid"), audio, c.ContentType())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.Questions)
}

// listCaregivers handles GET /api/care-plans/:id/caregivers.
func (s *Server) listCaregivers(c *gin.Context) {
	caregivers, err := s.caregivers.List(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caregivers)
}

// inviteCaregiver handles POST /api/care-plans/:id/caregivers.
func (s *Server) inviteCaregiver(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	caregiver, err := s.caregivers.Invite(c.Request.Context(), currentUser(c), c.Param("id"), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inviteResponse{Caregiver: *caregiver, InviteCode: caregiver.InviteCode})
}

// acceptInvite handles POST /api/invites/:code/accept.
func (s *Server) acceptInvite(c *gin.Context) {
	caregiver, err := s.caregivers.Accept(c.Request.Context(), currentUser(c), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caregiver)
}

// addNote handles POST /api/care-plans/:id/notes.
func (s *Server) addNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	caregiver, err := s.caregivers.AddNote(c.Request.Context(), currentUser(c), c.Param("id"), req.Note)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, caregiver)
}

func (s *Server) readAudio(c *gin.Context) ([]byte, bool) {
	audio, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "recording is too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read recording", "details": err.Error()})
		return nil, false
	}
	if len(audio) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "recording is empty", "field": "audio", "row": nil})
		return nil, false
	}
	return audio, true
}
