package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/server/middleware"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
	"github.com/jonathan/job-autopilot/internal/types"
)

// userAndID returns the authenticated user and the {id} path value.
func (s *Server) userAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.jsonResponse(w, http.StatusUnauthorized, types.APIResponse{Error: "Unauthorized", Code: "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.fail(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.jsonResponse(w, http.StatusUnauthorized, types.APIResponse{Error: "Unauthorized", Code: "unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}

// handleReadiness reports the user's readiness for their automation mode.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Readiness.Check(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, report)
}

// handleScan matches recent postings for the user right away.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	if err := s.deps.Actions.Allow(r.Context(), userID, ratelimit.ActionScanNow); err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.deps.Scanner.MatchUser(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, res)
}

// handleListUserJobs lists the user's matches, best first.
func (s *Server) handleListUserJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	req := types.ListUserJobsRequest{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.fail(w, &ErrValidation{Field: "limit", Message: "must be an integer"})
			return
		}
		req.Limit = n
	}
	if err := req.Validate(); err != nil {
		s.fail(w, &ErrValidation{Field: "limit", Message: types.DescribeValidation(err)})
		return
	}
	jobs, err := s.deps.UserJobs.ListUserJobs(r.Context(), userID, req.Limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if jobs == nil {
		jobs = []db.UserJobWithJob{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"user_jobs": jobs, "count": len(jobs)})
}

// handleDismiss hides a match from the user's list.
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	userID, userJobID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	found, err := s.deps.UserJobs.DismissUserJob(r.Context(), userID, userJobID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !found {
		s.fail(w, &db.ErrNotFound{Entity: "user job", ID: userJobID})
		return
	}
	s.success(w, http.StatusOK, map[string]any{"id": userJobID, "dismissed": true})
}

// handleFollowUp counts a follow-up on an applied or interviewing match.
func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	userID, userJobID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	uj, err := s.deps.UserJobs.RecordFollowUp(r.Context(), userID, userJobID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if uj == nil {
		s.fail(w, &db.ErrNotFound{Entity: "user job", ID: userJobID})
		return
	}
	s.success(w, http.StatusOK, uj)
}

// handleDraft generates an application draft for one of the user's matches.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	userID, userJobID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	var req types.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, &ErrValidation{Field: "template_hint", Message: types.DescribeValidation(err)})
		return
	}
	if err := s.deps.Actions.Allow(r.Context(), userID, ratelimit.ActionGenerate); err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.deps.Drafts.DraftApplication(r.Context(), userID, userJobID, req.TemplateHint)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusCreated, res)
}

// handleApprove queues a draft for sending.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	userID, appID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Actions.Allow(r.Context(), userID, ratelimit.ActionApprove); err != nil {
		s.fail(w, err)
		return
	}
	app, err := s.deps.Applications.Approve(r.Context(), userID, appID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, app)
}

// handleCancel withdraws a draft or queued application.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, appID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	app, err := s.deps.Applications.Cancel(r.Context(), userID, appID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, app)
}

// handleRetry requeues a failed application.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	userID, appID, ok := s.userAndID(w, r)
	if !ok {
		return
	}
	app, err := s.deps.Applications.Retry(r.Context(), userID, appID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, app)
}

// handleUploadResume accepts a multipart résumé upload: a "file" part plus
// name, language, categories (comma separated) and is_default fields.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, resumes.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(resumes.MaxUploadBytes); err != nil {
		s.fail(w, &ErrValidation{Field: "file", Message: "expected a multipart upload under 5 MB"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, &ErrValidation{Field: "file", Message: "missing"})
		return
	}
	defer file.Close()

	req := types.ResumeUploadRequest{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Language: strings.TrimSpace(r.FormValue("language")),
	}
	if req.Name == "" {
		req.Name = strings.TrimSuffix(header.Filename, ".pdf")
	}
	if v := r.FormValue("categories"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Categories = append(req.Categories, c)
			}
		}
	}
	if v := r.FormValue("is_default"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, &ErrValidation{Field: "is_default", Message: "must be a boolean"})
			return
		}
		req.IsDefault = b
	}
	if err := req.Validate(); err != nil {
		s.fail(w, &ErrValidation{Field: "form", Message: types.DescribeValidation(err)})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, resumes.MaxUploadBytes+1))
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(data) > resumes.MaxUploadBytes {
		s.fail(w, &ErrValidation{Field: "file", Message: "larger than 5 MB"})
		return
	}

	resume, err := s.deps.Resumes.Upload(r.Context(), resumes.Upload{
		UserID:      userID,
		Name:        req.Name,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Language:    req.Language,
		Categories:  req.Categories,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusCreated, resume)
}
