package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-hail/internal/models"
)

// PostgresStore is an optional durable RideStore. Update uses
// SELECT ... FOR UPDATE so the read-modify-write stays serialized per ride
// even across server instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Create(r *models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, rider_id, driver_id, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address, status, fare, distance, duration, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		r.ID, r.RiderID, nullString(r.DriverID), r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address,
		r.Dropoff.Lat, r.Dropoff.Lng, r.Dropoff.Address, string(r.Status), r.Fare, r.Distance, r.Duration,
		r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(id string) (*models.Ride, error) {
	return scanRide(p.db.QueryRow(selectRide+` WHERE id=$1`, id))
}

func (p *PostgresStore) Update(id string, mutate func(*models.Ride) error) (*models.Ride, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := scanRide(tx.QueryRow(selectRide+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := mutate(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now()
	if _, err := tx.Exec(`UPDATE rides SET driver_id=$1, status=$2, updated_at=$3 WHERE id=$4`,
		nullString(r.DriverID), string(r.Status), r.UpdatedAt, r.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *PostgresStore) ListByStatus(status models.Status) ([]*models.Ride, error) {
	rows, err := p.db.Query(selectRide+` WHERE status=$1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

func (p *PostgresStore) ListByUser(userID string) ([]*models.Ride, error) {
	rows, err := p.db.Query(selectRide+` WHERE rider_id=$1 OR driver_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

const selectRide = `SELECT id, rider_id, driver_id, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address, status, fare, distance, duration, created_at, updated_at FROM rides`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var r models.Ride
	var driverID sql.NullString
	var status string
	err := row.Scan(&r.ID, &r.RiderID, &driverID, &r.Pickup.Lat, &r.Pickup.Lng, &r.Pickup.Address,
		&r.Dropoff.Lat, &r.Dropoff.Lng, &r.Dropoff.Address, &status, &r.Fare, &r.Distance, &r.Duration,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.DriverID = driverID.String
	r.Status = models.Status(status)
	return &r, nil
}

func scanRides(rows *sql.Rows) ([]*models.Ride, error) {
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
