package storage

import (
	"database/sql"

	_ "github.com/lib/pq"
)

type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(dsn string) (*PostgresLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresLog{db: db}, nil
}

func (p *PostgresLog) Record(r SearchRecord) error {
	_, err := p.db.Exec(`INSERT INTO ridesharing_searches(service_id, origin, destination, outcome, offer_count, requested_at) VALUES($1,$2,$3,$4,$5,$6)`,
		r.ServiceID, r.Origin, r.Destination, r.Outcome, r.OfferCount, r.RequestedAt)
	return err
}

func (p *PostgresLog) Close() error {
	return p.db.Close()
}
