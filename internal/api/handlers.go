package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/export"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/model"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, Ok(s.validator.Constraints()))
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, Ok(s.validator.DefaultRecord()))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	errs := s.validator.Validate(rec)
	writeJSON(s.log, w, http.StatusOK, Ok(ValidationResult{Valid: len(errs) == 0, Errors: errs}))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseListQuery(r.URL.Query())
	if err != nil {
		writeJSON(s.log, w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	items, err := s.client.List(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	filtered := model.FilterThresholds(items, q)
	writeJSON(s.log, w, http.StatusOK, Ok(model.Paginate(filtered, q.Page, q.Size)))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseListQuery(r.URL.Query())
	if err != nil {
		writeJSON(s.log, w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	items, err := s.client.List(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	data, err := export.Thresholds(model.FilterThresholds(items, q), s.validator.Schema())
	if err != nil {
		s.log.Error("failed to export thresholds", sl.Err(err))
		writeJSON(s.log, w, http.StatusInternalServerError, Fail("failed to export thresholds"))
		return
	}

	filename := fmt.Sprintf("thresholds_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Error("failed to write export", sl.Err(err))
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	t, err := s.client.Get(r.Context(), id)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	writeJSON(s.log, w, http.StatusOK, Ok(t))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok || !s.checkRecord(w, rec) {
		return
	}

	s.submit(w, r, model.NewMutation(model.OpCreate, 0, rec), http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, ok := s.decodeRecord(w, r)
	if !ok || !s.checkRecord(w, rec) {
		return
	}

	s.submit(w, r, model.NewMutation(model.OpUpdate, id, rec), http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	s.submit(w, r, model.NewMutation(model.OpDelete, id, threshold.Record{}), http.StatusNoContent)
}

func (s *Server) handleOutboxStatus(w http.ResponseWriter, r *http.Request) {
	status := OutboxStatus{Enabled: s.outbox != nil}
	if s.outbox != nil {
		count, err := s.outbox.Count(r.Context())
		if err != nil {
			s.log.Error("failed to count outbox", sl.Err(err))
			writeJSON(s.log, w, http.StatusInternalServerError, Fail("failed to read outbox"))
			return
		}
		status.Pending = count
	}

	writeJSON(s.log, w, http.StatusOK, Ok(status))
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.replayer == nil {
		writeJSON(s.log, w, http.StatusConflict, Fail("outbox is disabled"))
		return
	}

	res, err := s.replayer.ReplayOnce(r.Context())
	if err != nil {
		s.log.Error("replay failed", sl.Err(err))
		writeJSON(s.log, w, http.StatusInternalServerError, Fail("replay failed"))
		return
	}

	writeJSON(s.log, w, http.StatusOK, Ok(res))
}

// submit applies m and answers with okStatus. An unreachable backend queues m
// in the outbox when one is configured. While the outbox holds earlier writes,
// m is queued behind them so replay keeps submission order.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, m *model.Mutation, okStatus int) {
	log := s.log.With(
		slog.String("mutation_id", m.ID),
		slog.String("op", string(m.Op)),
		slog.Int64("threshold_id", m.ThresholdID),
	)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.outbox != nil {
		pending, err := s.outbox.Count(r.Context())
		if err != nil {
			log.Error("failed to count outbox", sl.Err(err))
			writeJSON(s.log, w, http.StatusInternalServerError, Fail("failed to read outbox"))
			return
		}
		if pending > 0 {
			log.Info("outbox not empty, mutation queued", slog.Int64("pending", pending))
			s.enqueue(w, r, log, m)
			return
		}
	}

	t, err := s.client.Apply(r.Context(), m)
	if err == nil {
		log.Info("mutation applied")
		if okStatus == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(s.log, w, okStatus, Ok(t))
		return
	}

	if backend.Temporary(err) && s.outbox != nil {
		log.Warn("backend unavailable, queueing mutation", sl.Err(err))
		s.enqueue(w, r, log, m)
		return
	}

	log.Error("failed to apply mutation", sl.Err(err))
	s.writeBackendError(w, err)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, log *slog.Logger, m *model.Mutation) {
	if err := s.outbox.Store(r.Context(), m); err != nil {
		log.Error("failed to queue mutation", sl.Err(err))
		writeJSON(s.log, w, http.StatusInternalServerError, Fail("failed to queue mutation"))
		return
	}
	writeJSON(s.log, w, http.StatusAccepted, Ok(QueuedResult{Queued: true, MutationID: m.ID}))
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	if se, ok := backend.IsRejected(err); ok {
		writeJSON(s.log, w, se.Code, Fail(se.Message()))
		return
	}
	if errors.Is(err, backend.ErrNotFound) {
		writeJSON(s.log, w, http.StatusNotFound, Fail(backend.ErrNotFound.Error()))
		return
	}

	s.log.Error("backend request failed", sl.Err(err))
	writeJSON(s.log, w, http.StatusBadGateway, Fail("backend request failed"))
}

// checkRecord answers 422 with the rule failures of an invalid record.
func (s *Server) checkRecord(w http.ResponseWriter, rec threshold.Record) bool {
	errs := s.validator.Validate(rec)
	if len(errs) == 0 {
		return true
	}

	writeJSON(s.log, w, http.StatusUnprocessableEntity, Result[ValidationResult]{
		Code:    CodeError,
		Type:    "error",
		Message: "threshold is invalid",
		Result:  ValidationResult{Valid: false, Errors: errs},
	})
	return false
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (threshold.Record, bool) {
	var rec threshold.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(s.log, w, http.StatusBadRequest, Fail("invalid request body"))
		return rec, false
	}
	return rec, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(s.log, w, http.StatusBadRequest, Fail("invalid threshold id"))
		return 0, false
	}
	return id, true
}
