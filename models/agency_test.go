package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationStatusTransitions(t *testing.T) {
	assert.True(t, ApplicationPending.CanTransition(ApplicationAccepted))
	assert.True(t, ApplicationPending.CanTransition(ApplicationRejected))
	assert.False(t, ApplicationPending.CanTransition(ApplicationPending))

	assert.False(t, ApplicationAccepted.CanTransition(ApplicationRejected))
	assert.False(t, ApplicationAccepted.CanTransition(ApplicationPending))
	assert.False(t, ApplicationRejected.CanTransition(ApplicationAccepted))
}

func TestInvitationStatusTransitions(t *testing.T) {
	assert.True(t, InvitationPending.CanTransition(InvitationAccepted))
	assert.True(t, InvitationPending.CanTransition(InvitationDeclined))
	assert.True(t, InvitationPending.CanTransition(InvitationCancelled))
	assert.False(t, InvitationPending.CanTransition(InvitationPending))

	for _, terminal := range []InvitationStatus{InvitationAccepted, InvitationDeclined, InvitationCancelled} {
		assert.False(t, terminal.CanTransition(InvitationAccepted))
		assert.False(t, terminal.CanTransition(InvitationPending))
	}
}

func TestPayoutStatusTransitions(t *testing.T) {
	assert.True(t, PayoutPending.CanTransition(PayoutAccepted))
	assert.True(t, PayoutPending.CanTransition(PayoutDeclined))

	assert.False(t, PayoutAccepted.CanTransition(PayoutDeclined))
	assert.False(t, PayoutDeclined.CanTransition(PayoutAccepted))
	assert.False(t, PayoutAccepted.CanTransition(PayoutPending))
}
