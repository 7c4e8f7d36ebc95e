package repository

import (
	"context"
	"fmt"
	"strings"

	"reliefnet/internal/models"
)

func (s *SQLiteDB) AddHelpRequest(ctx context.Context, r *models.HelpRequest) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO help_requests (user_role, request_type, disaster_type, location, description, lat, lng, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserRole, r.RequestType, r.DisasterType, r.Location, r.Description,
		r.Coordinates.Lat, r.Coordinates.Lng, r.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("error inserting help request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading help request id: %w", err)
	}
	r.ID = id
	return id, nil
}

func (s *SQLiteDB) ListHelpRequests(ctx context.Context, opts HelpRequestFilter) ([]models.HelpRequest, error) {
	query := `
		SELECT id, user_role, request_type, disaster_type, location, description, lat, lng, created_at
		FROM help_requests`

	var conds []string
	var args []any
	if opts.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *opts.Since)
	}
	if opts.DisasterType != nil {
		conds = append(conds, "disaster_type = ?")
		args = append(args, *opts.DisasterType)
	}
	if opts.Ungeocoded {
		conds = append(conds, "lat IS NULL")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying help requests: %w", err)
	}
	defer rows.Close()

	var out []models.HelpRequest
	for rows.Next() {
		var r models.HelpRequest
		if err := rows.Scan(&r.ID, &r.UserRole, &r.RequestType, &r.DisasterType,
			&r.Location, &r.Description, &r.Coordinates.Lat, &r.Coordinates.Lng, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning help request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) CountHelpRequests(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM help_requests").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting help requests: %w", err)
	}
	return count, nil
}

func (s *SQLiteDB) UpdateCoordinates(ctx context.Context, id int64, coords models.Coordinates) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE help_requests SET lat = ?, lng = ? WHERE id = ?",
		coords.Lat, coords.Lng, id)
	if err != nil {
		return fmt.Errorf("error updating coordinates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
