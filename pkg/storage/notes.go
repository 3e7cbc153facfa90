package storage

import (
	"database/sql"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// Note is a project's single notes document.
type Note struct {
	ProjectID string    `json:"projectId"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateNote inserts the notes document for a project. At most one note
// exists per project.
func (s *Store) CreateNote(projectID, content string) (*Note, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if projectID == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "projectId is required")
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
        INSERT INTO notes (project_id, content, updated_at)
        VALUES (?, ?, ?)
    `, projectID, content, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "a note with this projectId already exists")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create note")
	}
	return &Note{ProjectID: projectID, Content: content, UpdatedAt: now}, nil
}

// GetNote returns the project's notes document, or nil when absent.
func (s *Store) GetNote(projectID string) (*Note, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`SELECT project_id, content, updated_at FROM notes WHERE project_id = ?`, projectID)
	var n Note
	if err := row.Scan(&n.ProjectID, &n.Content, &n.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "get note")
	}
	return &n, nil
}

// UpdateNote replaces the content of an existing notes document. Returns
// nil when the project has no note yet.
func (s *Store) UpdateNote(projectID, content string) (*Note, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`
        UPDATE notes SET content = ?, updated_at = ? WHERE project_id = ?
    `, content, now, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "update note")
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil
	}
	return &Note{ProjectID: projectID, Content: content, UpdatedAt: now}, nil
}

// DeleteNote removes the project's notes document. Idempotent.
func (s *Store) DeleteNote(projectID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM notes WHERE project_id = ?`, projectID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "delete note")
	}
	return nil
}
