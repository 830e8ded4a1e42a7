package offer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"parkerflight/pkg/db"
)

// SQLStore implements Store on top of Postgres.
type SQLStore struct {
	db db.SQLExecutor
}

func NewSQLStore(executor db.SQLExecutor) *SQLStore {
	return &SQLStore{db: executor}
}

const tripRequestColumns = `id, user_id, auto_book_enabled, max_price, budget, selected_offer_id, auto_book_status, created_at, updated_at`

const offerColumns = `id, trip_request_id, price_total, currency, cabin_class, bags_included, duration_minutes, stops, airline_name, expires_at, return_departure_at, raw_provider_payload, created_at`

func (s *SQLStore) LoadTripRequest(ctx context.Context, id string) (*TripRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM trip_requests WHERE id = $1`, tripRequestColumns)

	row := s.db.QueryRowContext(ctx, query, id)

	var tr TripRequest
	var maxPrice, budget sql.NullFloat64
	var selectedOfferID sql.NullString
	err := row.Scan(
		&tr.ID, &tr.UserID, &tr.AutoBookEnabled,
		&maxPrice, &budget, &selectedOfferID, &tr.AutoBookStatus,
		&tr.CreatedAt, &tr.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trip request: %w", err)
	}

	if maxPrice.Valid {
		tr.MaxPrice = &maxPrice.Float64
	}
	if budget.Valid {
		tr.Budget = &budget.Float64
	}
	if selectedOfferID.Valid {
		tr.SelectedOfferID = &selectedOfferID.String
	}
	return &tr, nil
}

func (s *SQLStore) LoadOffers(ctx context.Context, tripRequestID string, notExpiredAsOf time.Time) ([]FlightOffer, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM flight_offers WHERE trip_request_id = $1 AND expires_at > $2 ORDER BY price_total ASC`,
		offerColumns,
	)

	rows, err := s.db.QueryContext(ctx, query, tripRequestID, notExpiredAsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	var offers []FlightOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offers: %w", err)
	}
	return offers, nil
}

func (s *SQLStore) LoadOfferByID(ctx context.Context, id string) (*FlightOffer, error) {
	query := fmt.Sprintf(`SELECT %s FROM flight_offers WHERE id = $1`, offerColumns)

	row := s.db.QueryRowContext(ctx, query, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	return &o, nil
}

func (s *SQLStore) UpdateTripRequest(ctx context.Context, id string, upd TripRequestUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	next := 1

	if upd.SelectedOfferID != nil {
		sets = append(sets, fmt.Sprintf("selected_offer_id = $%d", next))
		args = append(args, *upd.SelectedOfferID)
		next++
	}
	if upd.AutoBookStatus != nil {
		sets = append(sets, fmt.Sprintf("auto_book_status = $%d", next))
		args = append(args, string(*upd.AutoBookStatus))
		next++
	}
	if len(args) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE trip_requests SET %s WHERE id = $%d", strings.Join(sets, ", "), next)
	args = append(args, id)
	next++

	if upd.ExpectedStatus != nil {
		query += fmt.Sprintf(" AND auto_book_status = $%d", next)
		args = append(args, string(*upd.ExpectedStatus))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trip request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if upd.ExpectedStatus != nil {
			// Either the row is gone or the status moved under us. Tell the
			// caller it was the guard so selection is not retried blindly.
			return ErrStatusConflict
		}
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) InsertOffers(ctx context.Context, offers []FlightOffer) error {
	if len(offers) == 0 {
		return nil
	}

	query := `INSERT INTO flight_offers
		(id, trip_request_id, price_total, currency, cabin_class, bags_included,
		 duration_minutes, stops, airline_name, expires_at, return_departure_at,
		 raw_provider_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	return s.db.WithTransaction(ctx, sql.LevelReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		for _, o := range offers {
			var returnAt any
			if o.ReturnDepartureAt != nil {
				returnAt = *o.ReturnDepartureAt
			}
			var payload any
			if len(o.RawProviderPayload) > 0 {
				payload = []byte(o.RawProviderPayload)
			}
			_, err := tx.ExecContext(ctx, query,
				o.ID, o.TripRequestID, o.PriceTotal, o.Currency, string(o.CabinClass),
				o.BagsIncluded, o.DurationMinutes, o.Stops, o.AirlineName,
				o.ExpiresAt, returnAt, payload, o.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert offer %s: %w", o.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) DeleteExpiredOffers(ctx context.Context, asOf time.Time) (int64, error) {
	query := `DELETE FROM flight_offers
		WHERE expires_at <= $1
		AND id NOT IN (SELECT selected_offer_id FROM trip_requests WHERE selected_offer_id IS NOT NULL)`

	res, err := s.db.ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired offers: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (FlightOffer, error) {
	var o FlightOffer
	var returnAt sql.NullTime
	var payload []byte

	err := row.Scan(
		&o.ID, &o.TripRequestID, &o.PriceTotal, &o.Currency, &o.CabinClass,
		&o.BagsIncluded, &o.DurationMinutes, &o.Stops, &o.AirlineName,
		&o.ExpiresAt, &returnAt, &payload, &o.CreatedAt,
	)
	if err != nil {
		return FlightOffer{}, err
	}

	if returnAt.Valid {
		o.ReturnDepartureAt = &returnAt.Time
	}
	if len(payload) > 0 {
		o.RawProviderPayload = payload
	}
	return o, nil
}
