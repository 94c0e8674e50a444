package rest

import (
	"net/http"

	"github.com/mohitkumar/flowup/model"
)

// HandleScanDue runs one synchronous due scan pass and reports the per
// enrollment outcome. The background executor runs the same pass on a
// timer; claims keep the two from double dispatching.
func (s *Server) HandleScanDue(w http.ResponseWriter, r *http.Request) {
	results := s.dueScanner.RunOnce()
	if results == nil {
		results = []model.ItemResult{}
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (s *Server) HandleScanTriggers(w http.ResponseWriter, r *http.Request) {
	results := s.triggerRunner.RunOnce()
	if results == nil {
		results = []model.ItemResult{}
	}
	respondWithJSON(w, http.StatusOK, results)
}
