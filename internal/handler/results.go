package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/grading"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	if _, err := h.store.GetAnswerKey(keyID); err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.store.ListResultsByAnswerKey(keyID, r.URL.Query().Get("class_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]resultView, 0, len(results))
	for _, res := range results {
		views = append(views, newResultView(r.Context(), res))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.GetAnswerKey(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	classID := r.URL.Query().Get("class_id")
	results, err := h.store.ListResultsByAnswerKey(key.ID, classID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	eng, err := h.engine()
	if err != nil {
		writeError(w, r, err)
		return
	}
	report := eng.Report(key, results)
	report.ClassID = classID
	writeJSON(w, http.StatusOK, report)
}

// handleGetResult returns one result compared against every result of the
// same answer key (and class, when the result has one).
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.GetResult(chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	peers, err := h.store.ListResultsByAnswerKey(res.AnswerKeyID, res.ClassID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	eng, err := h.engine()
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats := eng.ClassStatistics(model.Summaries(peers))
	diff := res.Summary.Percentage - stats.AveragePercentage
	cmp := localizeComparison(r.Context(), grading.CompareWithClass(res.Summary.Percentage, stats.AveragePercentage), diff)

	view := newResultView(r.Context(), res)
	view.Comparison = &cmp
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteResult(chi.URLParam(r, "resultID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ListResultsByStudent(chi.URLParam(r, "studentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]resultView, 0, len(results))
	for _, res := range results {
		views = append(views, newResultView(r.Context(), res))
	}
	writeJSON(w, http.StatusOK, views)
}
