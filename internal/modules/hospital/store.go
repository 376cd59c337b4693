// README: Hospital store backed by PostgreSQL; patients held as a jsonb list.
package hospital

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"radar/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, h *Hospital) error {
	patients, err := json.Marshal(h.Patients)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO hospitals (id, name, lat, lng, total_units, occupied_units, patients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(h.ID), h.Name, h.Location.Lat, h.Location.Lng,
		h.TotalUnits, h.OccupiedUnits, patients, h.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, lat, lng, total_units, occupied_units, patients, created_at
		FROM hospitals
		WHERE id = $1`, string(id),
	)
	h, err := scanHospital(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

func (s *Store) List(ctx context.Context) ([]*Hospital, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, lat, lng, total_units, occupied_units, patients, created_at
		FROM hospitals
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AdmitPatient appends the patient and bumps occupancy in one guarded
// statement. Returns false when the hospital is already at capacity.
func (s *Store) AdmitPatient(ctx context.Context, id types.ID, p Patient) (bool, error) {
	entry, err := json.Marshal([]Patient{p})
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE hospitals
		SET patients = patients || $2::jsonb,
		    occupied_units = occupied_units + 1
		WHERE id = $1 AND occupied_units < total_units`,
		string(id), entry,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CheckoutPatient removes the patient and decrements occupancy (floored at
// zero) in one statement. Returns false when the patient is not on the list.
func (s *Store) CheckoutPatient(ctx context.Context, id types.ID, patientID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE hospitals
		SET patients = COALESCE(
		        (SELECT jsonb_agg(p) FROM jsonb_array_elements(patients) AS p WHERE p->>'id' <> $2),
		        '[]'::jsonb),
		    occupied_units = GREATEST(occupied_units - 1, 0)
		WHERE id = $1
		  AND patients @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		string(id), patientID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHospital(row rowScanner) (*Hospital, error) {
	var h Hospital
	var patients []byte
	err := row.Scan(&h.ID, &h.Name, &h.Location.Lat, &h.Location.Lng,
		&h.TotalUnits, &h.OccupiedUnits, &patients, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(patients) > 0 {
		if err := json.Unmarshal(patients, &h.Patients); err != nil {
			return nil, fmt.Errorf("decoding patients for %s: %w", h.ID, err)
		}
	}
	return &h, nil
}
