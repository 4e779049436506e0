package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/httputil"
	"github.com/reelhaven/mediaserver/internal/jobs"
	"github.com/reelhaven/mediaserver/internal/models"
)

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.libraries.ListLibraries()
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list libraries"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, libs)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := s.libraries.GetLibrary(chi.URLParam(r, "libraryID"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string             `json:"name"`
		Kind  models.LibraryKind `json:"kind"`
		Paths []string           `json:"paths"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" || len(req.Paths) == 0 {
		httputil.WriteAPIError(w, apierror.BadRequest("name and at least one path are required"))
		return
	}
	if req.Kind != models.LibraryMovies && req.Kind != models.LibraryTV {
		httputil.WriteAPIError(w, apierror.BadRequest("kind must be movies or tv_shows"))
		return
	}

	lib, err := s.libraries.CreateLibrary(req.Name, req.Kind, req.Paths)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create library"))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lib)
}

// handleScanLibrary creates a job row, enqueues the asynq task keyed to the
// library id (so a second scan request while one is in flight is absorbed
// rather than run twice), and returns the job immediately.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	lib, err := s.libraries.GetLibrary(libraryID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	job, err := s.jobsRepo.Create("scan:library", nil)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create job record"))
		return
	}

	payload := jobs.ScanPayload{LibraryID: lib.ID, Kind: lib.Kind, JobID: job.ID}
	uniqueID := "scan:" + lib.ID
	if _, err := s.jobQueue.EnqueueUnique(jobs.TaskLibraryScan, payload, uniqueID); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to enqueue scan"))
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListRootItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.ListRoots(chi.URLParam(r, "libraryID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list items"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobList, err := s.jobsRepo.ListRecent(50)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list jobs"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jobList)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobsRepo.GetByID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("job not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.jobsRepo.CancelJob(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to cancel job"))
		return
	}
	if !cancelled {
		httputil.WriteAPIError(w, apierror.Conflict("job is not cancellable"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
