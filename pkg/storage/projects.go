package storage

import (
	"database/sql"
	"strings"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// Project is a collaborative workspace with a member list.
type Project struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Members   []User    `json:"users,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProject inserts a project and registers the creator as its first
// member. Names are stored lowercase, trimmed, and must be unique.
func (s *Store) CreateProject(name, creatorID string) (*Project, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "project name is required")
	}
	if !IsValidID(creatorID) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid userId")
	}

	id := NewID()
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create project")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        INSERT INTO projects (id, name, created_at, updated_at)
        VALUES (?, ?, ?, ?)
    `, id, name, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "project name already exists")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create project")
	}
	if _, err := tx.Exec(`
        INSERT INTO project_members (project_id, user_id, added_at)
        VALUES (?, ?, ?)
    `, id, creatorID, now); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "add creator to project")
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create project")
	}

	return &Project{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetProjectByID returns the project with its member list, or nil when the
// project does not exist.
func (s *Store) GetProjectByID(projectID string) (*Project, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`SELECT id, name, created_at, updated_at FROM projects WHERE id = ?`, projectID)
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "get project")
	}

	members, err := s.listProjectMembers(projectID)
	if err != nil {
		return nil, err
	}
	p.Members = members
	return &p, nil
}

// ProjectExists reports whether a project with the given id exists.
func (s *Store) ProjectExists(projectID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrStoreClosed
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "project exists")
	}
	return true, nil
}

// ListProjectsForUser returns all projects the user belongs to.
func (s *Store) ListProjectsForUser(userID string) ([]Project, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(`
        SELECT p.id, p.name, p.created_at, p.updated_at
        FROM projects p
        JOIN project_members m ON m.project_id = p.id
        WHERE m.user_id = ?
        ORDER BY p.created_at DESC
    `, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "list projects")
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "scan project")
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// IsProjectMember reports whether the user belongs to the project.
func (s *Store) IsProjectMember(projectID, userID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrStoreClosed
	}
	var one int
	err := s.db.QueryRow(`
        SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?
    `, projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "membership check")
	}
	return true, nil
}

// AddProjectMembers adds users to a project. The requester must already be
// a member; adding an existing member is a no-op.
func (s *Store) AddProjectMembers(projectID, requesterID string, userIDs []string) (*Project, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if !IsValidID(projectID) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidProject, "invalid projectId")
	}
	for _, id := range userIDs {
		if !IsValidID(id) {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid users array")
		}
	}

	member, err := s.IsProjectMember(projectID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "user does not belong to this project")
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "add members")
	}
	defer tx.Rollback()

	for _, id := range userIDs {
		if _, err := tx.Exec(`
            INSERT OR IGNORE INTO project_members (project_id, user_id, added_at)
            VALUES (?, ?, ?)
        `, projectID, id, now); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "add member")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "add members")
	}

	return s.GetProjectByID(projectID)
}

// RemoveProjectMembers removes users from a project. The requester must be
// a member.
func (s *Store) RemoveProjectMembers(projectID, requesterID string, userIDs []string) (*Project, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	member, err := s.IsProjectMember(projectID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "user does not belong to this project")
	}

	for _, id := range userIDs {
		if _, err := s.db.Exec(`
            DELETE FROM project_members WHERE project_id = ? AND user_id = ?
        `, projectID, id); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "remove member")
		}
	}
	return s.GetProjectByID(projectID)
}

// DeleteProject removes a project; its file tree, notes, and memberships
// cascade away with it.
func (s *Store) DeleteProject(projectID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "delete project")
	}
	return nil
}

func (s *Store) listProjectMembers(projectID string) ([]User, error) {
	rows, err := s.db.Query(`
        SELECT u.id, u.email, u.created_at, u.updated_at
        FROM users u
        JOIN project_members m ON m.user_id = u.id
        WHERE m.project_id = ?
        ORDER BY m.added_at
    `, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "list members")
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "scan member")
		}
		members = append(members, u)
	}
	return members, rows.Err()
}
