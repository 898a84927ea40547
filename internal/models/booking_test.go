package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusTransitions(t *testing.T) {
	t.Run("Happy Path", func(t *testing.T) {
		path := []BookingStatus{
			BookingStatusRequested,
			BookingStatusApproved,
			BookingStatusPaymentPending,
			BookingStatusPaid,
			BookingStatusIssued,
		}
		for i := 0; i < len(path)-1; i++ {
			assert.True(t, path[i].CanTransitionTo(path[i+1]),
				"%s -> %s should be allowed", path[i], path[i+1])
		}
	})

	t.Run("Issued Only Expires", func(t *testing.T) {
		assert.True(t, BookingStatusIssued.CanTransitionTo(BookingStatusExpired))
		assert.False(t, BookingStatusIssued.CanTransitionTo(BookingStatusCancelled))
		assert.False(t, BookingStatusIssued.CanTransitionTo(BookingStatusRejected))
		assert.False(t, BookingStatusIssued.CanTransitionTo(BookingStatusPaid))
	})

	t.Run("No Skipping Payment", func(t *testing.T) {
		assert.False(t, BookingStatusRequested.CanTransitionTo(BookingStatusPaid))
		assert.False(t, BookingStatusRequested.CanTransitionTo(BookingStatusIssued))
		assert.False(t, BookingStatusApproved.CanTransitionTo(BookingStatusIssued))
		assert.False(t, BookingStatusPaymentPending.CanTransitionTo(BookingStatusIssued))
	})

	t.Run("No Backward Moves", func(t *testing.T) {
		assert.False(t, BookingStatusApproved.CanTransitionTo(BookingStatusRequested))
		assert.False(t, BookingStatusPaid.CanTransitionTo(BookingStatusPaymentPending))
		assert.False(t, BookingStatusPaymentPending.CanTransitionTo(BookingStatusRejected))
	})

	t.Run("Terminal States", func(t *testing.T) {
		for _, status := range []BookingStatus{BookingStatusRejected, BookingStatusExpired, BookingStatusCancelled} {
			assert.True(t, status.IsTerminal(), "%s should be terminal", status)
			for _, target := range []BookingStatus{
				BookingStatusRequested, BookingStatusApproved, BookingStatusPaymentPending,
				BookingStatusPaid, BookingStatusIssued, BookingStatusRejected,
				BookingStatusExpired, BookingStatusCancelled,
			} {
				assert.False(t, status.CanTransitionTo(target),
					"terminal %s must not transition to %s", status, target)
			}
		}
		assert.False(t, BookingStatusIssued.IsTerminal())
		assert.False(t, BookingStatusRequested.IsTerminal())
	})
}

func TestPassengerCounts(t *testing.T) {
	t.Run("Total And ByType", func(t *testing.T) {
		counts := PassengerCounts{Adults: 2, Children: 1, Infants: 1}
		assert.Equal(t, 4, counts.Total())
		assert.Equal(t, 2, counts.ByType(PassengerTypeAdult))
		assert.Equal(t, 1, counts.ByType(PassengerTypeChild))
		assert.Equal(t, 1, counts.ByType(PassengerTypeInfant))
	})

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, PassengerCounts{Adults: 1}.Validate())
		assert.Error(t, PassengerCounts{}.Validate())
		assert.Error(t, PassengerCounts{Adults: 2, Children: -1}.Validate())
	})
}

func TestCreateBookingRequestValidate(t *testing.T) {
	valid := CreateBookingRequest{
		FlightGroupID: uuid.New(),
		Passengers: []PassengerInput{
			{PassengerType: PassengerTypeAdult, FullName: "Jane Smith"},
			{PassengerType: PassengerTypeChild, FullName: "Sam Smith"},
		},
	}

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
		counts := valid.Counts()
		assert.Equal(t, 1, counts.Adults)
		assert.Equal(t, 1, counts.Children)
		assert.Equal(t, 0, counts.Infants)
	})

	t.Run("No Passengers", func(t *testing.T) {
		req := CreateBookingRequest{FlightGroupID: uuid.New()}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one passenger")
	})

	t.Run("Unknown Passenger Type", func(t *testing.T) {
		req := valid
		req.Passengers = []PassengerInput{{PassengerType: "SEN", FullName: "Old Smith"}}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown passenger type")
	})

	t.Run("Missing Name", func(t *testing.T) {
		req := valid
		req.Passengers = []PassengerInput{{PassengerType: PassengerTypeAdult}}
		assert.Error(t, req.Validate())
	})
}

func TestActorIsOperator(t *testing.T) {
	assert.True(t, Actor{Role: RoleOperator}.IsOperator())
	assert.False(t, Actor{Role: RoleAgency}.IsOperator())
}
