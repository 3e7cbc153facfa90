package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// FileTreeArtifact is a project's persisted file tree: a single JSON
// document mapping file paths to file contents, replaced wholesale.
type FileTreeArtifact struct {
	ProjectID string          `json:"projectId"`
	Tree      json.RawMessage `json:"fileTree"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateFileTree inserts the file tree for a project. Fails with CONFLICT
// when the project already has one.
func (s *Store) CreateFileTree(projectID string, tree json.RawMessage) (*FileTreeArtifact, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if err := validateTreeInput(projectID, tree); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
        INSERT INTO file_trees (project_id, tree, updated_at)
        VALUES (?, ?, ?)
    `, projectID, string(tree), now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "file tree already exists for this project")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create file tree")
	}
	return &FileTreeArtifact{ProjectID: projectID, Tree: tree, UpdatedAt: now}, nil
}

// GetFileTree returns the project's file tree, or nil when absent.
func (s *Store) GetFileTree(projectID string) (*FileTreeArtifact, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`SELECT project_id, tree, updated_at FROM file_trees WHERE project_id = ?`, projectID)
	var art FileTreeArtifact
	var raw string
	if err := row.Scan(&art.ProjectID, &raw, &art.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "get file tree")
	}
	art.Tree = json.RawMessage(raw)
	return &art, nil
}

// ReplaceFileTree swaps the project's file tree wholesale. The delete and
// insert run in one transaction so concurrent readers observe either the
// old tree or the new one, never a missing artifact in between. Calling it
// twice with the same tree is idempotent.
func (s *Store) ReplaceFileTree(projectID string, tree json.RawMessage) (*FileTreeArtifact, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if err := validateTreeInput(projectID, tree); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "replace file tree")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM file_trees WHERE project_id = ?`, projectID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "replace file tree")
	}
	if _, err := tx.Exec(`
        INSERT INTO file_trees (project_id, tree, updated_at)
        VALUES (?, ?, ?)
    `, projectID, string(tree), now); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "replace file tree")
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "replace file tree")
	}

	return &FileTreeArtifact{ProjectID: projectID, Tree: tree, UpdatedAt: now}, nil
}

// UpdateFileTree upserts the project's file tree (the manual-edit path).
func (s *Store) UpdateFileTree(projectID string, tree json.RawMessage) (*FileTreeArtifact, error) {
	return s.ReplaceFileTree(projectID, tree)
}

// DeleteFileTree removes the project's file tree. Idempotent.
func (s *Store) DeleteFileTree(projectID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM file_trees WHERE project_id = ?`, projectID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "delete file tree")
	}
	return nil
}

func validateTreeInput(projectID string, tree json.RawMessage) error {
	if projectID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "projectId is required")
	}
	if len(tree) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "file tree is required")
	}
	if !json.Valid(tree) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "file tree must be valid JSON")
	}
	return nil
}
