package offer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadTripRequest(ctx context.Context, id string) (*TripRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TripRequest), args.Error(1)
}

func (m *MockStore) LoadOffers(ctx context.Context, tripRequestID string, notExpiredAsOf time.Time) ([]FlightOffer, error) {
	args := m.Called(ctx, tripRequestID, notExpiredAsOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]FlightOffer), args.Error(1)
}

func (m *MockStore) LoadOfferByID(ctx context.Context, id string) (*FlightOffer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FlightOffer), args.Error(1)
}

func (m *MockStore) UpdateTripRequest(ctx context.Context, id string, upd TripRequestUpdate) error {
	args := m.Called(ctx, id, upd)
	return args.Error(0)
}

func (m *MockStore) InsertOffers(ctx context.Context, offers []FlightOffer) error {
	args := m.Called(ctx, offers)
	return args.Error(0)
}

func (m *MockStore) DeleteExpiredOffers(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

// fixedIDGen avoids pulling a snowflake node into unit tests.
type fixedIDGen struct{ id int64 }

func (g fixedIDGen) GenerateID() int64 { return g.id }
