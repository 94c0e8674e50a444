package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"go.uber.org/zap"
)

func (s *Server) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var enrollReq model.EnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&enrollReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	enrollment, err := s.lifecycle.Enroll(enrollReq.ProspectId, enrollReq.SequenceId, enrollReq.StartImmediately)
	if err != nil {
		logger.Error("error enrolling prospect", zap.String("prospect", enrollReq.ProspectId), zap.String("sequence", enrollReq.SequenceId), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, enrollment)
}

func (s *Server) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	enrollment, err := s.lifecycle.GetEnrollment(id)
	if err != nil {
		logger.Error("error getting enrollment", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, enrollment)
}

func (s *Server) HandlePauseEnrollment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	enrollment, err := s.lifecycle.Pause(id)
	if err != nil {
		logger.Error("error pausing enrollment", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, enrollment)
}

func (s *Server) HandleResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	enrollment, err := s.lifecycle.Resume(id)
	if err != nil {
		logger.Error("error resuming enrollment", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, enrollment)
}

func (s *Server) HandleCancelEnrollment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	enrollment, err := s.lifecycle.Cancel(id)
	if err != nil {
		logger.Error("error cancelling enrollment", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, enrollment)
}
