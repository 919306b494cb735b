package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/grading"
	appI18n "github.com/coderDevDev/omr-checker-bubble-sheet/internal/i18n"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/store"
)

// fillStudent completes name and class from the roster when the
// submission only names a student ID.
func (h *Handler) fillStudent(sub *grading.Submission) error {
	if sub.StudentID == "" || (sub.StudentName != "" && sub.ClassID != "") {
		return nil
	}
	st, err := h.store.GetStudent(sub.StudentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sub.StudentName == "" {
		sub.StudentName = st.Name
	}
	if sub.ClassID == "" {
		sub.ClassID = st.ClassID
	}
	return nil
}

func (h *Handler) evaluateAndSave(key model.AnswerKey, sub grading.Submission) (model.ExamResult, error) {
	eng, err := h.engine()
	if err != nil {
		return model.ExamResult{}, err
	}
	if err := h.fillStudent(&sub); err != nil {
		return model.ExamResult{}, err
	}
	res, err := eng.Evaluate(key, sub)
	if err != nil {
		return res, err
	}
	if err := h.store.SaveResult(res); err != nil {
		return res, err
	}
	slog.Info("graded sheet", "result", res.ID, "key", key.ID, "student", res.StudentID,
		"score", res.Summary.TotalScore, "percentage", res.Summary.Percentage, "grade", res.Grade)
	return res, nil
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.GetAnswerKey(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sub grading.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.evaluateAndSave(key, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultView(r.Context(), res))
}

type batchRequest struct {
	Submissions []grading.Submission `json:"submissions"`
}

type batchResponse struct {
	Message    string                `json:"message"`
	Results    []resultView          `json:"results"`
	Statistics model.ClassStatistics `json:"statistics"`
}

func (h *Handler) handleGradeBatch(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.GetAnswerKey(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	for i := range req.Submissions {
		if err := h.fillStudent(&req.Submissions[i]); err != nil {
			writeError(w, r, err)
			return
		}
	}

	eng, err := h.engine()
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := grading.GradeBatch(r.Context(), eng, key, req.Submissions, h.config.Workers)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := batchResponse{
		Message:    appI18n.Tp(r.Context(), "SheetsGraded", len(results)),
		Results:    make([]resultView, 0, len(results)),
		Statistics: eng.ClassStatistics(model.Summaries(results)),
	}
	if err := h.store.SaveResults(results); err != nil {
		writeError(w, r, err)
		return
	}
	for _, res := range results {
		resp.Results = append(resp.Results, newResultView(r.Context(), res))
	}
	slog.Info("graded batch", "key", key.ID, "count", len(results))
	writeJSON(w, http.StatusCreated, resp)
}

// handleScan reads an uploaded sheet image through the recognizer and
// grades it. Form fields: image (file), student_id, student_name, class_id.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if h.rec == nil {
		writeError(w, r, errRecognizerUnavailable)
		return
	}
	key, err := h.store.GetAnswerKey(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: no image uploaded", errBadRequest))
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.scan(r.Context(), key, header.Filename, image, grading.Submission{
		StudentID:   r.FormValue("student_id"),
		StudentName: r.FormValue("student_name"),
		ClassID:     r.FormValue("class_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultView(r.Context(), res))
}

func (h *Handler) scan(ctx context.Context, key model.AnswerKey, filename string, image []byte, sub grading.Submission) (model.ExamResult, error) {
	rec, err := h.rec.Process(ctx, filename, image)
	if err != nil {
		return model.ExamResult{}, err
	}
	sub.Answers = rec.Answers
	sub.MultiMarkedCount = rec.MultiMarkedCount
	sub.MarkedImage = rec.MarkedImage
	if rec.MultiMarkedCount > 0 {
		slog.Warn("sheet has multi-marked questions", "file", filename, "count", rec.MultiMarkedCount)
	}
	return h.evaluateAndSave(key, sub)
}
