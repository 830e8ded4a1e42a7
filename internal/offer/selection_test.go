package offer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"parkerflight/pkg/logger"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestSelector(store Store) *Selector {
	s := NewSelector(store, fixedIDGen{id: 42}, logger.NewWithWriter("production", io.Discard))
	s.now = func() time.Time { return testNow }
	return s
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }
func ptrStr(v string) *string     { return &v }

func testOffer(id string, price float64) FlightOffer {
	return FlightOffer{
		ID:              id,
		TripRequestID:   "tr-1",
		PriceTotal:      price,
		Currency:        "USD",
		CabinClass:      CabinEconomy,
		BagsIncluded:    true,
		DurationMinutes: 300,
		Stops:           0,
		AirlineName:     "United Airlines",
		ExpiresAt:       testNow.Add(2 * time.Hour),
		CreatedAt:       testNow.Add(-30 * time.Minute),
	}
}

func TestMeetsBasicCriteria(t *testing.T) {
	offer := testOffer("o-1", 1200)

	t.Run("price ceiling excludes regardless of score", func(t *testing.T) {
		assert.False(t, MeetsBasicCriteria(offer, SelectionCriteria{MaxPrice: ptrFloat(1000)}))
	})

	t.Run("price at ceiling passes", func(t *testing.T) {
		assert.True(t, MeetsBasicCriteria(offer, SelectionCriteria{MaxPrice: ptrFloat(1200)}))
	})

	t.Run("max stops", func(t *testing.T) {
		two := testOffer("o-2", 500)
		two.Stops = 2
		assert.False(t, MeetsBasicCriteria(two, SelectionCriteria{MaxStops: ptrInt(1)}))
		assert.True(t, MeetsBasicCriteria(offer, SelectionCriteria{MaxStops: ptrInt(0)}))
	})

	t.Run("max duration", func(t *testing.T) {
		assert.False(t, MeetsBasicCriteria(offer, SelectionCriteria{MaxDuration: ptrInt(299)}))
		assert.True(t, MeetsBasicCriteria(offer, SelectionCriteria{MaxDuration: ptrInt(300)}))
	})

	t.Run("bags required", func(t *testing.T) {
		noBags := testOffer("o-3", 500)
		noBags.BagsIncluded = false
		assert.False(t, MeetsBasicCriteria(noBags, SelectionCriteria{BagsRequired: true}))
		assert.True(t, MeetsBasicCriteria(noBags, SelectionCriteria{}))
	})

	t.Run("empty criteria passes everything", func(t *testing.T) {
		assert.True(t, MeetsBasicCriteria(offer, SelectionCriteria{}))
	})
}

func TestCalculateOfferScore(t *testing.T) {
	s := newTestSelector(new(MockStore))

	t.Run("known score with ceiling", func(t *testing.T) {
		o := testOffer("o-1", 500)
		c := SelectionCriteria{MaxPrice: ptrFloat(1000), PreferredCabin: CabinEconomy}

		// price (1-500/1000)*100 = 50, cabin match 30, nonstop 25,
		// duration <=480 -> 10, bags 10, age 30m -> 5
		assert.InDelta(t, 130.0, s.CalculateOfferScore(o, c), 1e-9)
	})

	t.Run("flat price curve without ceiling", func(t *testing.T) {
		o := testOffer("o-1", 2000)
		o.CabinClass = CabinBusiness
		o.BagsIncluded = false
		o.Stops = 3
		o.DurationMinutes = 800
		o.CreatedAt = testNow.Add(-7 * time.Hour)

		// price max(0, 50-20)=30, no cabin preference and not economy -> 0,
		// 3 stops -> 0, duration > 720 -> 0, no bags, stale
		assert.InDelta(t, 30.0, s.CalculateOfferScore(o, SelectionCriteria{}), 1e-9)
	})

	t.Run("economy default bonus applies only without preference", func(t *testing.T) {
		o := testOffer("o-1", 500)
		base := s.CalculateOfferScore(o, SelectionCriteria{})
		preferred := s.CalculateOfferScore(o, SelectionCriteria{PreferredCabin: CabinBusiness})
		assert.InDelta(t, base-economyDefaultBonus, preferred, 1e-9)
	})

	t.Run("airline substring match is case-insensitive", func(t *testing.T) {
		o := testOffer("o-1", 500)
		with := s.CalculateOfferScore(o, SelectionCriteria{PreferredAirlines: []string{"UNITED"}})
		without := s.CalculateOfferScore(o, SelectionCriteria{PreferredAirlines: []string{"Delta"}})
		assert.InDelta(t, airlineMatchBonus, with-without, 1e-9)
	})

	t.Run("duration tiers are not cumulative", func(t *testing.T) {
		short := testOffer("o-1", 500)
		short.DurationMinutes = 240
		medium := testOffer("o-2", 500)
		medium.DurationMinutes = 480
		long := testOffer("o-3", 500)
		long.DurationMinutes = 720

		c := SelectionCriteria{}
		assert.InDelta(t, shortDurationBonus-mediumDurationBonus,
			s.CalculateOfferScore(short, c)-s.CalculateOfferScore(medium, c), 1e-9)
		assert.InDelta(t, mediumDurationBonus-longDurationBonus,
			s.CalculateOfferScore(medium, c)-s.CalculateOfferScore(long, c), 1e-9)
	})

	t.Run("freshness tiers", func(t *testing.T) {
		fresh := testOffer("o-1", 500)
		fresh.CreatedAt = testNow.Add(-10 * time.Minute)
		recent := testOffer("o-2", 500)
		recent.CreatedAt = testNow.Add(-3 * time.Hour)
		stale := testOffer("o-3", 500)
		stale.CreatedAt = testNow.Add(-24 * time.Hour)

		c := SelectionCriteria{}
		assert.InDelta(t, freshOfferBonus-recentOfferBonus,
			s.CalculateOfferScore(fresh, c)-s.CalculateOfferScore(recent, c), 1e-9)
		assert.InDelta(t, recentOfferBonus,
			s.CalculateOfferScore(recent, c)-s.CalculateOfferScore(stale, c), 1e-9)
	})

	t.Run("never negative", func(t *testing.T) {
		extreme := testOffer("o-1", 1e9)
		extreme.CabinClass = CabinFirst
		extreme.BagsIncluded = false
		extreme.Stops = 5
		extreme.DurationMinutes = 5000
		extreme.CreatedAt = testNow.Add(-72 * time.Hour)

		assert.GreaterOrEqual(t, s.CalculateOfferScore(extreme, SelectionCriteria{}), 0.0)
		assert.GreaterOrEqual(t, s.CalculateOfferScore(extreme, SelectionCriteria{MaxPrice: ptrFloat(100)}), 0.0)
	})
}

func TestSelectBestOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("picks highest scoring offer", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		cheapWithStops := testOffer("o-cheap", 300)
		cheapWithStops.Stops = 2
		cheapWithStops.BagsIncluded = false
		nonstop := testOffer("o-nonstop", 320)

		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1", AutoBookStatus: StatusIdle}, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{cheapWithStops, nonstop}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.NotNil(t, got)
		assert.Equal(t, "o-nonstop", got.ID)
		store.AssertExpectations(t)
	})

	t.Run("deterministic across repeated calls", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		offers := []FlightOffer{testOffer("o-a", 400), testOffer("o-b", 450), testOffer("o-c", 500)}
		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1"}, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return(offers, nil)

		first, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		second, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("score ties break to the cheaper offer", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		// Identical in every scored attribute; ascending-price load order
		// puts o-first ahead.
		a := testOffer("o-first", 400)
		b := testOffer("o-second", 400)
		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1"}, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{a, b}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.Equal(t, "o-first", got.ID)
	})

	t.Run("explicit criteria ceiling wins over stored values", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		tr := &TripRequest{ID: "tr-1", MaxPrice: ptrFloat(1000), Budget: ptrFloat(2000)}
		pricey := testOffer("o-pricey", 900)
		store.On("LoadTripRequest", ctx, "tr-1").Return(tr, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{pricey}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", &SelectionCriteria{MaxPrice: ptrFloat(800)})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("stored max price beats budget", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		tr := &TripRequest{ID: "tr-1", MaxPrice: ptrFloat(500), Budget: ptrFloat(2000)}
		pricey := testOffer("o-pricey", 900)
		store.On("LoadTripRequest", ctx, "tr-1").Return(tr, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{pricey}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("budget used when max price unset", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		tr := &TripRequest{ID: "tr-1", Budget: ptrFloat(800)}
		pricey := testOffer("o-pricey", 900)
		affordable := testOffer("o-ok", 700)
		store.On("LoadTripRequest", ctx, "tr-1").Return(tr, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{affordable, pricey}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.Equal(t, "o-ok", got.ID)
	})

	t.Run("missing trip request is soft", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("LoadTripRequest", ctx, "tr-missing").Return(nil, ErrNotFound)

		got, err := s.SelectBestOffer(ctx, "tr-missing", nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("no live offers is soft", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1"}, nil)
		store.On("LoadOffers", ctx, "tr-1", testNow).Return([]FlightOffer{}, nil)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("store failure surfaces as error", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		storeErr := errors.New("connection reset")
		store.On("LoadTripRequest", ctx, "tr-1").Return(nil, storeErr)

		got, err := s.SelectBestOffer(ctx, "tr-1", nil)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, storeErr)
	})
}

func TestMarkOfferSelected(t *testing.T) {
	ctx := context.Background()

	t.Run("success guards on idle status", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("UpdateTripRequest", ctx, "tr-1", mock.MatchedBy(func(upd TripRequestUpdate) bool {
			return upd.SelectedOfferID != nil && *upd.SelectedOfferID == "o-1" &&
				upd.AutoBookStatus != nil && *upd.AutoBookStatus == StatusProcessing &&
				upd.ExpectedStatus != nil && *upd.ExpectedStatus == StatusIdle
		})).Return(nil)

		assert.NoError(t, s.MarkOfferSelected(ctx, "tr-1", "o-1"))
		store.AssertExpectations(t)
	})

	t.Run("concurrent selection yields conflict", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("UpdateTripRequest", ctx, "tr-1", mock.Anything).Return(ErrStatusConflict)

		err := s.MarkOfferSelected(ctx, "tr-1", "o-1")
		assert.ErrorIs(t, err, ErrStatusConflict)
	})
}

func TestGetSelectedOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("returns selected offer", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		o := testOffer("o-1", 400)
		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1", SelectedOfferID: ptrStr("o-1")}, nil)
		store.On("LoadOfferByID", ctx, "o-1").Return(&o, nil)

		got, err := s.GetSelectedOffer(ctx, "tr-1")
		assert.NoError(t, err)
		assert.Equal(t, "o-1", got.ID)
	})

	t.Run("nothing selected", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1"}, nil)

		got, err := s.GetSelectedOffer(ctx, "tr-1")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("selected offer row gone", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("LoadTripRequest", ctx, "tr-1").Return(&TripRequest{ID: "tr-1", SelectedOfferID: ptrStr("o-gone")}, nil)
		store.On("LoadOfferByID", ctx, "o-gone").Return(nil, ErrNotFound)

		got, err := s.GetSelectedOffer(ctx, "tr-1")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestIsOfferStillValid(t *testing.T) {
	ctx := context.Background()

	t.Run("live offer is valid", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		o := testOffer("o-1", 400)
		store.On("LoadOfferByID", ctx, "o-1").Return(&o, nil)

		assert.True(t, s.IsOfferStillValid(ctx, "o-1"))
	})

	t.Run("expired offer is invalid", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		o := testOffer("o-1", 400)
		o.ExpiresAt = testNow.Add(-time.Minute)
		store.On("LoadOfferByID", ctx, "o-1").Return(&o, nil)

		assert.False(t, s.IsOfferStillValid(ctx, "o-1"))
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		o := testOffer("o-1", 400)
		o.ExpiresAt = testNow
		store.On("LoadOfferByID", ctx, "o-1").Return(&o, nil)

		assert.False(t, s.IsOfferStillValid(ctx, "o-1"))
	})

	t.Run("lookup failure fails closed", func(t *testing.T) {
		store := new(MockStore)
		s := newTestSelector(store)

		store.On("LoadOfferByID", ctx, "o-1").Return(nil, errors.New("timeout"))

		assert.False(t, s.IsOfferStillValid(ctx, "o-1"))
	})
}

func TestSweepExpiredOffers(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := newTestSelector(store)

	store.On("DeleteExpiredOffers", ctx, testNow).Return(int64(3), nil)

	deleted, err := s.SweepExpiredOffers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
