package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/keyfile"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

func (h *Handler) handleListAnswerKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAnswerKeys()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) handleGetAnswerKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.GetAnswerKey(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *Handler) handleSaveAnswerKey(w http.ResponseWriter, r *http.Request) {
	var key model.AnswerKey
	if err := decodeJSON(w, r, &key); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.saveAnswerKey(&key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handler) saveAnswerKey(key *model.AnswerKey) error {
	settings, err := h.store.GetSettings(h.defaults)
	if err != nil {
		return err
	}
	if err := key.Validate(settings.OptionAlphabet); err != nil {
		return err
	}
	if err := h.store.SaveAnswerKey(key); err != nil {
		return err
	}
	slog.Info("saved answer key", "id", key.ID, "questions", len(key.Answers))
	return nil
}

func (h *Handler) handleDeleteAnswerKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "keyID")
	if err := h.store.DeleteAnswerKey(id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("deleted answer key", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleImportAnswerKeys accepts a JSON or YAML key file as multipart
// field "file". A file whose content was already imported is skipped.
func (h *Handler) handleImportAnswerKeys(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: no file uploaded", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash := keyfile.Hash(data)
	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if storedHash == hash {
		writeJSON(w, http.StatusOK, map[string]any{"imported": 0, "duplicate": true})
		return
	}

	format, err := keyfile.FormatFromPath(header.Filename)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	keys, err := keyfile.Parse(data, format)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	for i := range keys {
		if err := h.saveAnswerKey(&keys[i]); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("uploaded answer keys", "filename", header.Filename, "count", len(keys))
	writeJSON(w, http.StatusCreated, map[string]any{"imported": len(keys), "answer_keys": keys})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(h.defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(h.defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Fields missing from the body keep their current values.
	if err := decodeJSON(w, r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SaveSettings(settings); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("updated settings", "passing_percentage", settings.PassingPercentage, "bands", len(settings.GradingScale))
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ExportAll(h.defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="omrgrader-export.json"`)
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var data model.DataExport
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.store.ImportAll(data, h.defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("imported data", "answer_keys", len(data.AnswerKeys), "results", n)
	writeJSON(w, http.StatusOK, map[string]any{"answer_keys": len(data.AnswerKeys), "results": n})
}
