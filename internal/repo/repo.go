package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventregis/internal/geo"
	"eventregis/internal/model"
	"eventregis/internal/status"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRegistrationClosed  = errors.New("registration is closed")
	ErrMissingDocument     = errors.New("supporting document is required")
	ErrMethodNotAllowed    = errors.New("registration method not allowed for this event")
	ErrGeofenceDenied      = errors.New("registrant is outside the check-in radius")
)

// Registration sources, checked against the event's register_method gate.
const (
	SourceForm     = "form"
	SourceProvider = "provider"
)

// Position is a registrant's device location at submission time.
type Position struct {
	Lat float64
	Lon float64
}

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	SetRegisClosed(ctx context.Context, id int64, closed bool) error
	AdmitParticipantTx(ctx context.Context, p *model.Participant, source string, pos *Position) (int64, error)
	DeleteParticipantTx(ctx context.Context, eventID, participantID int64) (string, int, error)
	GetParticipantsByEventID(ctx context.Context, eventID int64) ([]model.Participant, error)
	CountParticipants(ctx context.Context, eventID int64) (int, error)
	SyncRegisteredTx(ctx context.Context, eventID int64) (int, error)
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (name, description, begin_date, end_date, event_time, address,
		                    latitude, longitude, enable_checkin_radius, checkin_radius_m,
		                    capacity, status, register_method, need_origin_approve_paper,
		                    provider_id_created)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''))
		RETURNING id
	`

	row := r.db.QueryRowContext(ctx, query,
		e.Name, e.Description, e.BeginDate, e.EndDate, e.EventTime, e.Address,
		e.Latitude, e.Longitude, e.EnableCheckInRadius, e.CheckInRadiusMeters,
		e.Capacity, e.Status, e.RegisterMethod, e.NeedOriginApprovePaper,
		e.ProviderIDCreated,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

const eventColumns = `
	id, name, description, begin_date, COALESCE(end_date, ''), event_time, address,
	latitude, longitude, enable_checkin_radius, checkin_radius_m,
	capacity, registered, status, regis_closed, COALESCE(provider_id_created, ''),
	register_method, need_origin_approve_paper, created_at, updated_at
`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.BeginDate, &e.EndDate, &e.EventTime, &e.Address,
		&e.Latitude, &e.Longitude, &e.EnableCheckInRadius, &e.CheckInRadiusMeters,
		&e.Capacity, &e.Registered, &e.Status, &e.RegisClosed, &e.ProviderIDCreated,
		&e.RegisterMethod, &e.NeedOriginApprovePaper, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *repository) UpdateEvent(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET name = $1, description = $2, begin_date = $3, end_date = NULLIF($4, ''),
		    event_time = $5, address = $6, latitude = $7, longitude = $8,
		    enable_checkin_radius = $9, checkin_radius_m = $10, capacity = $11,
		    status = $12, regis_closed = $13, provider_id_created = NULLIF($14, ''),
		    register_method = $15, need_origin_approve_paper = $16, updated_at = NOW()
		WHERE id = $17
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		e.Name, e.Description, e.BeginDate, e.EndDate, e.EventTime, e.Address,
		e.Latitude, e.Longitude, e.EnableCheckInRadius, e.CheckInRadiusMeters,
		e.Capacity, e.Status, e.RegisClosed, e.ProviderIDCreated,
		e.RegisterMethod, e.NeedOriginApprovePaper, e.ID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (r *repository) SetRegisClosed(ctx context.Context, id int64, closed bool) error {
	var got int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE events SET regis_closed = $1, updated_at = NOW() WHERE id = $2 RETURNING id`,
		closed, id,
	).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to set regis_closed: %w", err)
	}
	return nil
}

// AdmitParticipantTx is the authoritative admission decision. The event row is
// locked FOR UPDATE so concurrent admissions against the same event serialize
// and the registered counter can never pass capacity.
func (r *repository) AdmitParticipantTx(ctx context.Context, p *model.Participant, source string, pos *Position) (int64, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if pnc := recover(); pnc != nil {
			_ = tx.Rollback()
			panic(pnc)
		}
	}()

	var (
		e       model.Event
		endDate sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, regis_closed, need_origin_approve_paper, registered, capacity, status,
		       begin_date, end_date, register_method,
		       latitude, longitude, enable_checkin_radius, checkin_radius_m
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, p.EventID).Scan(
		&e.ID, &e.RegisClosed, &e.NeedOriginApprovePaper, &e.Registered, &e.Capacity, &e.Status,
		&e.BeginDate, &endDate, &e.RegisterMethod,
		&e.Latitude, &e.Longitude, &e.EnableCheckInRadius, &e.CheckInRadiusMeters,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, ErrEventNotFound
	}
	e.EndDate = endDate.String

	now := p.RegTime
	if now.IsZero() {
		now = time.Now()
	}
	isPast := status.IsPastEvent(e.BeginDate, e.EndDate, now)
	isFull := status.IsFull(&e)

	if e.RegisClosed || isFull || isPast {
		// One-time auto-heal: persist the closed state discovered here so
		// future reads don't recompute capacity.
		if !e.RegisClosed {
			if _, err := tx.ExecContext(ctx,
				`UPDATE events SET regis_closed = TRUE, updated_at = NOW() WHERE id = $1`,
				p.EventID,
			); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("failed to persist regis_closed: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return 0, fmt.Errorf("failed to commit regis_closed: %w", err)
			}
			return 0, ErrRegistrationClosed
		}
		_ = tx.Rollback()
		return 0, ErrRegistrationClosed
	}

	if (source == SourceForm && e.RegisterMethod == model.RegisterProviderOnly) ||
		(source == SourceProvider && e.RegisterMethod == model.RegisterFormOnly) {
		_ = tx.Rollback()
		return 0, ErrMethodNotAllowed
	}

	if e.NeedOriginApprovePaper && p.DocPath == "" {
		_ = tx.Rollback()
		return 0, ErrMissingDocument
	}

	if e.HasGeofence() {
		if pos == nil {
			_ = tx.Rollback()
			return 0, ErrGeofenceDenied
		}
		if !geo.WithinRadius(*e.Latitude, *e.Longitude, pos.Lat, pos.Lon, *e.CheckInRadiusMeters) {
			_ = tx.Rollback()
			return 0, ErrGeofenceDenied
		}
	}

	// Evaluated against the pre-increment count.
	willBeFull := e.Registered+1 >= e.Capacity

	var id int64
	p.Status = model.ParticipantConfirmed
	err = tx.QueryRowContext(ctx, `
		INSERT INTO participants (event_id, full_name, organization, position, email, phone,
		                          provider_id, food_type, status, reg_date, reg_time,
		                          doc_path, doc_mime, doc_name, doc_uploaded_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10, $11,
		        NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), $15)
		RETURNING id
	`, p.EventID, p.FullName, p.Organization, p.Position, p.Email, p.Phone,
		p.ProviderID, p.FoodType, p.Status, p.RegDate, now,
		p.DocPath, p.DocMime, p.DocName, p.DocUploadedAt,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to create participant: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registered = registered + 1,
		    regis_closed = (regis_closed OR $2),
		    updated_at = NOW()
		WHERE id = $1
	`, p.EventID, willBeFull); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to increment registered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// DeleteParticipantTx removes a participant and decrements the owning event's
// registered counter in the same transaction, never below zero. Returns the
// stored document path, if any, so the caller can remove the file afterwards,
// and the counter value after the decrement.
func (r *repository) DeleteParticipantTx(ctx context.Context, eventID, participantID int64) (string, int, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var docPath string
	err = tx.QueryRowContext(ctx, `
		DELETE FROM participants
		WHERE id = $1 AND event_id = $2
		RETURNING COALESCE(doc_path, '')
	`, participantID, eventID).Scan(&docPath)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, ErrParticipantNotFound
		}
		return "", 0, fmt.Errorf("failed to delete participant: %w", err)
	}

	var registered int
	if err := tx.QueryRowContext(ctx, `
		UPDATE events SET registered = GREATEST(registered - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING registered
	`, eventID).Scan(&registered); err != nil {
		_ = tx.Rollback()
		return "", 0, fmt.Errorf("failed to decrement registered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return docPath, registered, nil
}

func (r *repository) GetParticipantsByEventID(ctx context.Context, eventID int64) ([]model.Participant, error) {
	query := `
		SELECT id, event_id, full_name, organization, position, COALESCE(email, ''), phone,
		       COALESCE(provider_id, ''), food_type, status, reg_date, reg_time,
		       COALESCE(doc_path, ''), COALESCE(doc_mime, ''), COALESCE(doc_name, ''), doc_uploaded_at
		FROM participants
		WHERE event_id = $1
		ORDER BY reg_time ASC
	`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(
			&p.ID, &p.EventID, &p.FullName, &p.Organization, &p.Position, &p.Email, &p.Phone,
			&p.ProviderID, &p.FoodType, &p.Status, &p.RegDate, &p.RegTime,
			&p.DocPath, &p.DocMime, &p.DocName, &p.DocUploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) CountParticipants(ctx context.Context, eventID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// SyncRegisteredTx repairs drift between the registered counter and the
// actual participant count.
func (r *repository) SyncRegisteredTx(ctx context.Context, eventID int64) (int, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var exists int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&exists); err != nil {
		_ = tx.Rollback()
		return 0, ErrEventNotFound
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID,
	).Scan(&count); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET registered = $1, updated_at = NOW() WHERE id = $2`, count, eventID,
	); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to sync registered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}
