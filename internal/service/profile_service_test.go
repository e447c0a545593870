package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	apperrors "maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/notify"
	"maskan/internal/repository/memory"
	"maskan/internal/storage"
)

func newProfileService(t *testing.T) (ProfileService, *memory.Brokers, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	brokers := memory.NewBrokers()
	log := zaptest.NewLogger(t)
	return NewProfileService(memory.NewAgents(), brokers, NewUploadService(store, 1<<20, log), log), brokers, store
}

func TestProfileService_CreateAgent(t *testing.T) {
	svc, _, store := newProfileService(t)

	agent, err := svc.CreateAgent(context.Background(), AgentInput{
		AgentName:       " Sara ",
		AgentEmail:      "Sara@Agency.ae",
		ContactNumber:   "+971500000001",
		ContactWhatsApp: "+971500000001",
	}, []Part{bytesPart("profilePhoto", "me.png", "image/png", pngBytes(t))})
	require.NoError(t, err)

	assert.Equal(t, "Sara", agent.AgentName)
	assert.NotEmpty(t, agent.ProfilePhoto)
	assert.Len(t, store.Keys(), 1)

	found, err := svc.FindAgent(context.Background(), "sara@agency.ae")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, found.ID)

	_, err = svc.FindAgent(context.Background(), "ghost@agency.ae")
	assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)
}

func TestProfileService_CreateAgentWithoutPhoto(t *testing.T) {
	svc, _, _ := newProfileService(t)

	agent, err := svc.CreateAgent(context.Background(), AgentInput{
		AgentName: "Sara", AgentEmail: "sara@agency.ae", ContactNumber: "1", ContactWhatsApp: "1",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, agent.ProfilePhoto)

	_, err = svc.CreateAgent(context.Background(), AgentInput{AgentName: "Sara", AgentEmail: "bad"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProfileService_CreateBroker(t *testing.T) {
	svc, brokers, _ := newProfileService(t)
	in := BrokerInput{ReraBrokerID: "BRN-1", CompanyLicenseNumber: "CL-9", CompanyTelephoneNumber: "+97140000000"}

	_, err := svc.CreateBroker(context.Background(), in, nil)
	assert.ErrorIs(t, err, apperrors.ErrUploadRejected)

	broker, err := svc.CreateBroker(context.Background(), in, []Part{bytesPart("reraIDCard", "card.pdf", "application/pdf", pdfBytes())})
	require.NoError(t, err)
	assert.NotEmpty(t, broker.ReraIDCardURL)
	assert.Equal(t, 1, brokers.Len())
}

type staticHistory struct {
	userID string
	limit  int
}

func (h *staticHistory) History(_ context.Context, userID string, limit int) ([]model.NotificationLog, error) {
	h.userID, h.limit = userID, limit
	return []model.NotificationLog{}, nil
}

func TestNotificationService_ShareListing(t *testing.T) {
	var in ShareInput
	require.NoError(t, json.Unmarshal([]byte(`{"property":{"title":"Villa","price":2500000,"city":"Dubai","location":"Marina","beds":3,"broker":{"whatsapp":"+971501234567"}}}`), &in))

	d := &recordingDispatcher{}
	svc := NewNotificationService(d, &staticHistory{})

	delivery, err := svc.ShareListing(context.Background(), nil, in)
	require.NoError(t, err)
	assert.True(t, delivery.Delivered())

	msg := d.last()
	assert.Equal(t, notify.ChannelWhatsApp, msg.Channel)
	assert.Equal(t, "+971501234567", msg.To)
	assert.Contains(t, msg.Body, "Price: 2500000")
}

func TestNotificationService_ShareListingFailures(t *testing.T) {
	d := &recordingDispatcher{status: model.NotificationStatusFailed}
	svc := NewNotificationService(d, &staticHistory{})

	_, err := svc.ShareListing(context.Background(), nil, ShareInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	delivery, err := svc.ShareListing(context.Background(), nil, ShareInput{Property: SharedProperty{
		Title:  "Villa",
		Broker: SharedContact{Whatsapp: "+971501234567"},
	}})
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, "n-1", delivery.ID)
}

func TestNotificationService_HistoryClampsLimit(t *testing.T) {
	h := &staticHistory{}
	svc := NewNotificationService(&recordingDispatcher{}, h)
	user := &model.User{ID: primitive.NewObjectID()}

	_, err := svc.History(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultHistoryLimit, h.limit)
	assert.Equal(t, user.ID.Hex(), h.userID)

	_, err = svc.History(context.Background(), user, 5000)
	require.NoError(t, err)
	assert.Equal(t, maxHistoryLimit, h.limit)
}
