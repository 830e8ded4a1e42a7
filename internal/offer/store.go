package offer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound marks a missing trip request or offer row.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned when a guarded trip-request update finds a
	// different auto-book status than the caller expected.
	ErrStatusConflict = errors.New("auto-book status conflict")
)

// TripRequestUpdate is a partial update of a trip request row. When
// ExpectedStatus is set the update only applies if the stored auto_book_status
// still matches; a miss yields ErrStatusConflict. This is the optimistic guard
// against concurrent auto-booking triggers racing on the same trip request.
type TripRequestUpdate struct {
	SelectedOfferID *string
	AutoBookStatus  *AutoBookStatus
	ExpectedStatus  *AutoBookStatus
}

// Store is the persistence boundary of the selection core.
type Store interface {
	LoadTripRequest(ctx context.Context, id string) (*TripRequest, error)

	// LoadOffers returns all offers for the trip request whose expiry is
	// strictly after notExpiredAsOf, ordered ascending by total price. The
	// ordering is load-bearing: selection breaks score ties by it.
	LoadOffers(ctx context.Context, tripRequestID string, notExpiredAsOf time.Time) ([]FlightOffer, error)

	LoadOfferByID(ctx context.Context, id string) (*FlightOffer, error)

	UpdateTripRequest(ctx context.Context, id string, upd TripRequestUpdate) error

	InsertOffers(ctx context.Context, offers []FlightOffer) error

	// DeleteExpiredOffers removes offers expired as of the given instant that
	// no trip request still references. Returns the number of rows deleted.
	DeleteExpiredOffers(ctx context.Context, asOf time.Time) (int64, error)
}
