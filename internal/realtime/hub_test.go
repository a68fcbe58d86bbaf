package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/booking-api/internal/model"
)

func TestSinkDeliversOnlyToPatient(t *testing.T) {
	hub := NewHub()
	patient := NewClient(uuid.New())
	patientTab := NewClient(patient.UserID)
	other := NewClient(uuid.New())
	hub.Register(patient)
	hub.Register(patientTab)
	hub.Register(other)
	assert.Equal(t, 3, hub.ClientCount())

	event := model.AppointmentCancelledEvent{AppointmentID: uuid.New(), PatientID: patient.UserID, Reason: "absent"}
	require.NoError(t, NewSink(hub).Deliver(context.Background(), event))

	for _, c := range []*Client{patient, patientTab} {
		require.Len(t, c.Send, 1)
		var msg Message
		require.NoError(t, json.Unmarshal(<-c.Send, &msg))
		assert.Equal(t, model.EventAppointmentCancelled, msg.Type)

		var got model.AppointmentCancelledEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event.AppointmentID, got.AppointmentID)
	}
	assert.Empty(t, other.Send)
}

func TestSendToUserSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	c := NewClient(uuid.New())
	hub.Register(c)

	for i := 0; i < sendBuffer; i++ {
		n, err := hub.SendToUser(c.UserID, "ping", i)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	n, err := hub.SendToUser(c.UserID, "ping", "overflow")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := NewClient(uuid.New())
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Zero(t, hub.ClientCount())
	_, open := <-c.Send
	assert.False(t, open)

	n, err := hub.SendToUser(c.UserID, "ping", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
