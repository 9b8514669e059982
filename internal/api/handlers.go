// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

const maxBodyBytes = 1 << 20

type scoreRequest struct {
	FollowupType models.FollowupCategoryType `json:"followupType"`
	Diagnosis    json.RawMessage             `json:"diagnosis"`
}

type scoreResponse struct {
	ImprovementScore int               `json:"improvementScore"`
	ImprovementBand  string            `json:"improvementBand"`
	ScoreFactors     []followup.Factor `json:"scoreFactors"`
}

type intervalResponse struct {
	ProgressLevel           int       `json:"progressLevel"`
	RecommendedIntervalDays int       `json:"recommendedIntervalDays"`
	NextFollowupDate        time.Time `json:"nextFollowupDate"`
}

type elapsedResponse struct {
	CreatedAt *time.Time `json:"createdAt"`
	Elapsed   string     `json:"elapsed"`
}

func (s *Server) improvementScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.FollowupType.Valid() {
		writeError(w, http.StatusBadRequest, "followupType must be pillar or workbook")
		return
	}

	var diagnosis *models.DiagnosisResult
	if len(req.Diagnosis) > 0 && string(req.Diagnosis) != "null" {
		if result := validation.ValidateDiagnosisJSON(string(req.Diagnosis)); !result.Valid {
			writeError(w, http.StatusBadRequest, result.Summary())
			return
		}
		if err := json.Unmarshal(req.Diagnosis, &diagnosis); err != nil {
			writeError(w, http.StatusBadRequest, "invalid diagnosis")
			return
		}
	}

	factors := followup.ScoreFactors(diagnosis, req.FollowupType)
	if factors == nil {
		factors = []followup.Factor{}
	}
	score := followup.CalculateImprovementScore(diagnosis, req.FollowupType)

	writeJSON(w, http.StatusOK, scoreResponse{
		ImprovementScore: score,
		ImprovementBand:  followup.ClassifyImprovement(score),
		ScoreFactors:     factors,
	})
}

func (s *Server) followupInterval(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}

	writeJSON(w, http.StatusOK, intervalResponse{
		ProgressLevel:           level,
		RecommendedIntervalDays: followup.RecommendedFollowupInterval(level),
		NextFollowupDate:        followup.NextFollowupDateFrom(s.now().UTC(), level),
	})
}

func (s *Server) timeElapsed(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("createdAt")
	if raw == "" {
		writeJSON(w, http.StatusOK, elapsedResponse{Elapsed: followup.TimeElapsedSince(nil, s.now())})
		return
	}

	createdAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "createdAt must be RFC3339")
		return
	}

	writeJSON(w, http.StatusOK, elapsedResponse{
		CreatedAt: &createdAt,
		Elapsed:   followup.TimeElapsedSince(&createdAt, s.now()),
	})
}
