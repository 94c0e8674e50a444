package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveProspect(w http.ResponseWriter, r *http.Request) {
	var prospect model.Prospect
	if err := json.NewDecoder(r.Body).Decode(&prospect); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if len(prospect.Id) == 0 {
		prospect.Id = uuid.NewString()
	}
	if len(prospect.Status) == 0 {
		prospect.Status = model.PROSPECT_NEW
	}
	if err := s.storage.SaveProspect(&prospect); err != nil {
		logger.Error("error saving prospect", zap.String("id", prospect.Id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, prospect)
}

func (s *Server) HandleGetProspect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	prospect, err := s.storage.GetProspect(id)
	if err != nil {
		logger.Error("error getting prospect", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, prospect)
}

func (s *Server) HandleListInteractions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	interactions, err := s.storage.ListInteractionsByProspect(id)
	if err != nil {
		logger.Error("error listing interactions", zap.String("prospect", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, interactions)
}
