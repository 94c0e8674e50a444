package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/flowup/engine"
	"github.com/mohitkumar/flowup/executor"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.SequenceService
	lifecycle       *engine.LifecycleService
	storage         persistence.Storage
	dueScanner      *executor.DueScanExecutor
	triggerRunner   *executor.TriggerExecutor
}

func NewServer(httpPort int, metadataService metadata.SequenceService, lifecycle *engine.LifecycleService,
	storage persistence.Storage, dueScanner *executor.DueScanExecutor, triggerRunner *executor.TriggerExecutor) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		lifecycle:       lifecycle,
		storage:         storage,
		dueScanner:      dueScanner,
		triggerRunner:   triggerRunner,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/sequence", s.HandleCreateSequence).Methods(http.MethodPost)
	router.HandleFunc("/metadata/sequence/{id}", s.HandleGetSequence).Methods(http.MethodGet)
	router.HandleFunc("/metadata/sequence/{id}", s.HandleDeleteSequence).Methods(http.MethodDelete)

	router.HandleFunc("/prospect", s.HandleSaveProspect).Methods(http.MethodPost)
	router.HandleFunc("/prospect/{id}", s.HandleGetProspect).Methods(http.MethodGet)
	router.HandleFunc("/prospect/{id}/interactions", s.HandleListInteractions).Methods(http.MethodGet)

	router.HandleFunc("/enrollment", s.HandleEnroll).Methods(http.MethodPost)
	router.HandleFunc("/enrollment/{id}", s.HandleGetEnrollment).Methods(http.MethodGet)
	router.HandleFunc("/enrollment/{id}/pause", s.HandlePauseEnrollment).Methods(http.MethodGet)
	router.HandleFunc("/enrollment/{id}/resume", s.HandleResumeEnrollment).Methods(http.MethodGet)
	router.HandleFunc("/enrollment/{id}/cancel", s.HandleCancelEnrollment).Methods(http.MethodGet)

	router.HandleFunc("/scan/due", s.HandleScanDue).Methods(http.MethodPost)
	router.HandleFunc("/scan/triggers", s.HandleScanTriggers).Methods(http.MethodPost)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func statusForError(err error) int {
	switch {
	case errors.As(err, &model.NotFoundError{}):
		return http.StatusNotFound
	case errors.As(err, &model.DuplicateEnrollmentError{}):
		return http.StatusConflict
	case errors.As(err, &model.ValidationError{}),
		errors.As(err, &model.SequenceInactiveError{}),
		errors.As(err, &model.InvalidStateTransitionError{}):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
