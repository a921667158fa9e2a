package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

type saveTranslationRequest struct {
	ContentID      string                     `json:"content_id"`
	TargetLanguage string                     `json:"target_language"`
	Entries        []subtitle.TranslatedEntry `json:"entries"`
	Edited         bool                       `json:"edited"`
}

type savedTranslationResponse struct {
	ContentID       string                     `json:"content_id"`
	TargetLanguage  string                     `json:"target_language"`
	Entries         []subtitle.TranslatedEntry `json:"entries"`
	Edited          bool                       `json:"edited"`
	IsAuthoritative bool                       `json:"is_authoritative"`
}

// handleTranslations serves the saved-translation store keyed by
// (content_id, target_language): GET loads, PUT saves, DELETE removes.
// DELETE with ?clear=1 is the idempotent variant that also succeeds when
// nothing is stored.
func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		contentID, lang, ok := translationKey(w, r)
		if !ok {
			return
		}
		saved, err := s.engine.LoadTranslation(r.Context(), contentID, lang)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, savedTranslationResponse{
			ContentID:       saved.ContentID,
			TargetLanguage:  saved.TargetLanguage,
			Entries:         saved.Entries,
			Edited:          saved.Edited,
			IsAuthoritative: saved.IsAuthoritative,
		})
	case http.MethodPut:
		var req saveTranslationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := s.engine.SaveTranslation(r.Context(), req.ContentID, req.TargetLanguage, req.Entries, req.Edited); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
		})
	case http.MethodDelete:
		contentID, lang, ok := translationKey(w, r)
		if !ok {
			return
		}
		if isTruthy(r.URL.Query().Get("clear")) {
			if err := s.engine.ClearTranslation(r.Context(), contentID, lang); err != nil {
				writeEngineError(w, err)
				return
			}
		} else {
			if err := s.engine.DeleteTranslation(r.Context(), contentID, lang); err != nil {
				writeEngineError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func translationKey(w http.ResponseWriter, r *http.Request) (contentID, lang string, ok bool) {
	contentID = strings.TrimSpace(r.URL.Query().Get("content_id"))
	lang = strings.TrimSpace(r.URL.Query().Get("target_language"))
	if contentID == "" {
		writeError(w, http.StatusBadRequest, "content_id is required")
		return "", "", false
	}
	if lang == "" {
		writeError(w, http.StatusBadRequest, "target_language is required")
		return "", "", false
	}
	return contentID, lang, true
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

type editLinesRequest struct {
	ContentID      string            `json:"content_id"`
	TargetLanguage string            `json:"target_language"`
	Lines          []editLineRequest `json:"lines"`
}

type editLineRequest struct {
	Index          int    `json:"index"`
	TranslatedText string `json:"translated_text"`
}

type editSessionRequest struct {
	ContentID      string `json:"content_id"`
	TargetLanguage string `json:"target_language"`
	Index          int    `json:"index,omitempty"`
	All            bool   `json:"all,omitempty"`
}

// handleEditsView returns the stored translation with the current editing
// session's overrides applied.
func (s *Server) handleEditsView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	contentID, lang, ok := translationKey(w, r)
	if !ok {
		return
	}
	merged, err := s.engine.EditedResult(r.Context(), contentID, lang)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content_id":      contentID,
		"target_language": lang,
		"entries":         merged,
	})
}

func (s *Server) handleEditActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/edits/"), "/")

	switch action {
	case "lines":
		s.handleEditLines(w, r)
	case "undo", "redo":
		s.handleEditHistory(w, r, action)
	case "reset":
		s.handleEditReset(w, r)
	case "save":
		s.handleEditSave(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleEditLines(w http.ResponseWriter, r *http.Request) {
	var req editLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines is required")
		return
	}

	for _, line := range req.Lines {
		if err := s.engine.EditLine(r.Context(), req.ContentID, req.TargetLanguage, line.Index, line.TranslatedText); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	merged, err := s.engine.EditedResult(r.Context(), req.ContentID, req.TargetLanguage)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": merged,
	})
}

func (s *Server) handleEditHistory(w http.ResponseWriter, r *http.Request, action string) {
	var req editSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var applied bool
	var err error
	if action == "undo" {
		applied, err = s.engine.UndoEdit(r.Context(), req.ContentID, req.TargetLanguage)
	} else {
		applied, err = s.engine.RedoEdit(r.Context(), req.ContentID, req.TargetLanguage)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
	})
}

func (s *Server) handleEditReset(w http.ResponseWriter, r *http.Request) {
	var req editSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.All {
		if err := s.engine.ResetAllEdits(r.Context(), req.ContentID, req.TargetLanguage); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"applied": true,
		})
		return
	}

	applied, err := s.engine.ResetLine(r.Context(), req.ContentID, req.TargetLanguage, req.Index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
	})
}

func (s *Server) handleEditSave(w http.ResponseWriter, r *http.Request) {
	var req editSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.engine.SaveEdits(r.Context(), req.ContentID, req.TargetLanguage); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
	})
}
