package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateSequence(w http.ResponseWriter, r *http.Request) {
	var sequence model.Sequence
	if err := json.NewDecoder(r.Body).Decode(&sequence); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	saved, err := s.metadataService.SaveSequence(&sequence)
	if err != nil {
		logger.Error("error saving sequence", zap.String("name", sequence.Name), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, saved)
}

func (s *Server) HandleGetSequence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sequence, err := s.metadataService.GetSequence(id)
	if err != nil {
		logger.Error("error getting sequence", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, sequence)
}

func (s *Server) HandleDeleteSequence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.metadataService.DeleteSequence(id); err != nil {
		logger.Error("error deleting sequence", zap.String("id", id), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondOKWithoutBody(w)
}
