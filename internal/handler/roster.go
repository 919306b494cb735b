package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

func (h *Handler) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.store.ListClasses()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (h *Handler) handleSaveClass(w http.ResponseWriter, r *http.Request) {
	var c model.Class
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SaveClass(&c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleClassStudents(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	if _, err := h.store.GetClass(classID); err != nil {
		writeError(w, r, err)
		return
	}
	students, err := h.store.ListStudents(classID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.URL.Query().Get("class_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) handleSaveStudent(w http.ResponseWriter, r *http.Request) {
	var st model.Student
	if err := decodeJSON(w, r, &st); err != nil {
		writeError(w, r, err)
		return
	}
	if err := st.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if st.ClassID != "" {
		if _, err := h.store.GetClass(st.ClassID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := h.store.SaveStudent(&st); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteClass(chi.URLParam(r, "classID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteStudent(chi.URLParam(r, "studentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
