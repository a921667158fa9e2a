package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
	"github.com/MimeLyc/subtrans-engine/internal/tasks"
)

const (
	defaultPreviewLimit = 80
	maxPreviewLimit     = 500
)

type taskDetailResponse struct {
	Task          *tasks.Task          `json:"task"`
	Progress      taskProgressResponse `json:"progress"`
	Preview       []taskPreviewLine    `json:"preview"`
	PreviewOffset int                  `json:"preview_offset"`
	PreviewLimit  int                  `json:"preview_limit"`
}

type taskProgressResponse struct {
	TranslatedEntries int     `json:"translated_entries"`
	TotalEntries      int     `json:"total_entries"`
	Percent           float64 `json:"percent"`
}

type taskPreviewLine struct {
	Index          int    `json:"index"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

func (s *Server) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	taskID, action, ok := parseTaskRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		s.handleTaskDetail(w, r, taskID)
	case "cancel":
		s.handleTaskCancel(w, r, taskID)
	case "result":
		s.handleTaskResult(w, r, taskID)
	case "stream":
		s.handleTaskStream(w, r, taskID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func parseTaskRoute(path string) (taskID string, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/tasks/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	rawID, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return rawID, "", true
	}
	return rawID, parts[1], true
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultPreviewLimit)
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if limit > maxPreviewLimit {
		limit = maxPreviewLimit
	}

	task, err := s.engine.Status(taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	results, err := s.engine.Results(r.Context(), taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskDetailResponse{
		Task:          task,
		Progress:      computeTaskProgress(results),
		Preview:       buildPreviewLines(results, offset, limit),
		PreviewOffset: offset,
		PreviewLimit:  limit,
	})
}

func (s *Server) handleTaskCancel(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	task, err := s.engine.Cancel(taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task": task,
	})
}

// handleTaskResult returns the full assembled result in track order.
// Untranslated entries carry an empty translated_text, so a partial result
// after a failure or cancellation is still usable.
func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	task, err := s.engine.Status(taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	results, err := s.engine.Results(r.Context(), taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":    task,
		"entries": results,
	})
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func computeTaskProgress(results []subtitle.TranslatedEntry) taskProgressResponse {
	total := len(results)
	if total == 0 {
		return taskProgressResponse{}
	}
	done := 0
	for _, entry := range results {
		if strings.TrimSpace(entry.TranslatedText) != "" {
			done++
		}
	}
	return taskProgressResponse{
		TranslatedEntries: done,
		TotalEntries:      total,
		Percent:           (float64(done) / float64(total)) * 100,
	}
}

func buildPreviewLines(results []subtitle.TranslatedEntry, offset, limit int) []taskPreviewLine {
	total := len(results)
	if total == 0 || offset >= total {
		return []taskPreviewLine{}
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}

	end := min(total, offset+limit)
	ret := make([]taskPreviewLine, 0, end-offset)
	for _, entry := range results[offset:end] {
		ret = append(ret, taskPreviewLine{
			Index:          entry.Index,
			OriginalText:   entry.Text,
			TranslatedText: entry.TranslatedText,
		})
	}
	return ret
}
