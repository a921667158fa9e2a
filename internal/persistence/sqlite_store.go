package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
	"github.com/MimeLyc/subtrans-engine/internal/tasks"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore backs the task registry, chunk checkpoints, and the saved
// translation store with a single sqlite file. One open connection keeps
// writers serialized.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]*tasks.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, content_id, track_index, source_language, target_language, style, model_id,
			chunk_size, context_window, status, created_chunks, completed_chunks, failed_chunks,
			total_entries, translated_entries, cancel_requested, last_error,
			prompt_tokens, completion_tokens, total_tokens, created_at, updated_at
		 FROM tasks
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*tasks.Task, 0)
	for rows.Next() {
		var item tasks.Task
		var status string
		var cancelRequested int
		if err := rows.Scan(
			&item.ID,
			&item.Request.ContentID,
			&item.Request.TrackIndex,
			&item.Request.SourceLanguage,
			&item.Request.TargetLanguage,
			&item.Request.Style,
			&item.Request.ModelID,
			&item.Request.ChunkSize,
			&item.Request.ContextWindow,
			&status,
			&item.CreatedChunks,
			&item.CompletedChunks,
			&item.FailedChunks,
			&item.TotalEntries,
			&item.TranslatedEntries,
			&cancelRequested,
			&item.LastError,
			&item.Usage.PromptTokens,
			&item.Usage.CompletionTokens,
			&item.Usage.TotalTokens,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = tasks.Status(status)
		item.CancelRequested = cancelRequested == 1
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
			id, content_id, track_index, source_language, target_language, style, model_id,
			chunk_size, context_window, status, created_chunks, completed_chunks, failed_chunks,
			total_entries, translated_entries, cancel_requested, last_error,
			prompt_tokens, completion_tokens, total_tokens, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_id=excluded.content_id,
			track_index=excluded.track_index,
			source_language=excluded.source_language,
			target_language=excluded.target_language,
			style=excluded.style,
			model_id=excluded.model_id,
			chunk_size=excluded.chunk_size,
			context_window=excluded.context_window,
			status=excluded.status,
			created_chunks=excluded.created_chunks,
			completed_chunks=excluded.completed_chunks,
			failed_chunks=excluded.failed_chunks,
			total_entries=excluded.total_entries,
			translated_entries=excluded.translated_entries,
			cancel_requested=excluded.cancel_requested,
			last_error=excluded.last_error,
			prompt_tokens=excluded.prompt_tokens,
			completion_tokens=excluded.completion_tokens,
			total_tokens=excluded.total_tokens,
			updated_at=excluded.updated_at`,
		task.ID,
		task.Request.ContentID,
		task.Request.TrackIndex,
		task.Request.SourceLanguage,
		task.Request.TargetLanguage,
		task.Request.Style,
		task.Request.ModelID,
		task.Request.ChunkSize,
		task.Request.ContextWindow,
		string(task.Status),
		task.CreatedChunks,
		task.CompletedChunks,
		task.FailedChunks,
		task.TotalEntries,
		task.TranslatedEntries,
		boolToInt(task.CancelRequested),
		task.LastError,
		task.Usage.PromptTokens,
		task.Usage.CompletionTokens,
		task.Usage.TotalTokens,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	return err
}

// DeleteTaskData removes the auxiliary data of a task (chunk checkpoints).
func (s *SQLiteStore) DeleteTaskData(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunk_checkpoints WHERE task_id = ?`, taskID)
	return err
}

func (s *SQLiteStore) SaveChunkCheckpoint(ctx context.Context, cp ChunkCheckpoint) error {
	payload, err := json.Marshal(cp.TranslatedTexts)
	if err != nil {
		return err
	}
	updatedAt := cp.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO chunk_checkpoints (task_id, chunk_index, entry_start, entry_end, translated_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id, chunk_index) DO UPDATE SET
			entry_start=excluded.entry_start,
			entry_end=excluded.entry_end,
			translated_json=excluded.translated_json,
			updated_at=excluded.updated_at`,
		cp.TaskID,
		cp.ChunkIndex,
		cp.EntryStart,
		cp.EntryEnd,
		string(payload),
		updatedAt,
	)
	return err
}

func (s *SQLiteStore) LoadChunkCheckpoints(ctx context.Context, taskID string) ([]ChunkCheckpoint, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, chunk_index, entry_start, entry_end, translated_json, updated_at
		 FROM chunk_checkpoints
		 WHERE task_id = ?
		 ORDER BY chunk_index ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ChunkCheckpoint, 0)
	for rows.Next() {
		var item ChunkCheckpoint
		var translatedJSON string
		if err := rows.Scan(&item.TaskID, &item.ChunkIndex, &item.EntryStart, &item.EntryEnd, &translatedJSON, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(translatedJSON), &item.TranslatedTexts); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

type translationPayload struct {
	Entries []subtitle.TranslatedEntry `json:"entries"`
}

// SaveTranslation upserts the stored result for (content, target language).
// Authoritative saves always win; a non-authoritative save never replaces an
// authoritative row and quietly yields to it.
func (s *SQLiteStore) SaveTranslation(ctx context.Context, saved SavedTranslation) error {
	payload, err := json.Marshal(translationPayload{Entries: saved.Entries})
	if err != nil {
		return err
	}
	updatedAt := saved.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `INSERT INTO saved_translations (content_id, target_language, entries_json, edited, is_authoritative, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_id, target_language) DO UPDATE SET
			entries_json=excluded.entries_json,
			edited=excluded.edited,
			is_authoritative=excluded.is_authoritative,
			updated_at=excluded.updated_at`
	if !saved.IsAuthoritative {
		query += ` WHERE saved_translations.is_authoritative = 0`
	}

	res, err := s.db.ExecContext(
		ctx,
		query,
		saved.ContentID,
		saved.TargetLanguage,
		string(payload),
		boolToInt(saved.Edited),
		boolToInt(saved.IsAuthoritative),
		updatedAt,
	)
	if err != nil {
		return err
	}
	if !saved.IsAuthoritative {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			log.Debug("placeholder save for %s/%s skipped: authoritative row exists", saved.ContentID, saved.TargetLanguage)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadTranslation(ctx context.Context, contentID, targetLanguage string) (SavedTranslation, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT entries_json, edited, is_authoritative, updated_at
		 FROM saved_translations
		 WHERE content_id = ? AND target_language = ?`,
		contentID,
		targetLanguage,
	)

	var entriesJSON string
	var edited int
	var isAuthoritative int
	var updatedAt time.Time
	if err := row.Scan(&entriesJSON, &edited, &isAuthoritative, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return SavedTranslation{}, false, nil
		}
		return SavedTranslation{}, false, err
	}

	var payload translationPayload
	if err := json.Unmarshal([]byte(entriesJSON), &payload); err != nil {
		return SavedTranslation{}, false, err
	}
	return SavedTranslation{
		ContentID:       contentID,
		TargetLanguage:  targetLanguage,
		Entries:         payload.Entries,
		Edited:          edited == 1,
		IsAuthoritative: isAuthoritative == 1,
		UpdatedAt:       updatedAt,
	}, true, nil
}

// DeleteTranslation removes the stored result, failing with ErrNotFound when
// there is nothing to remove.
func (s *SQLiteStore) DeleteTranslation(ctx context.Context, contentID, targetLanguage string) error {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM saved_translations WHERE content_id = ? AND target_language = ?`,
		contentID,
		targetLanguage,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("translation %s/%s: %w", contentID, targetLanguage, ErrNotFound)
	}
	return nil
}

// ClearTranslation removes the stored result if present. Clearing an absent
// key is not an error.
func (s *SQLiteStore) ClearTranslation(ctx context.Context, contentID, targetLanguage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM saved_translations WHERE content_id = ? AND target_language = ?`,
		contentID,
		targetLanguage,
	)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
