package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/pkg/circuitbreaker"
)

func TestPublishMarshalsMessage(t *testing.T) {
	client, mock := redismock.NewClientMock()
	broker := NewRedisBrokerWithClient(client, zerolog.Nop())

	msg := map[string]string{"type": "therapy.created"}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	mock.ExpectPublish("physio.events", string(payload)).SetVal(1)

	require.NoError(t, broker.Publish(context.Background(), "physio.events", msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishOpensBreakerAfterFailures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	broker := NewRedisBrokerWithClient(client, zerolog.Nop())

	for i := 0; i < 5; i++ {
		mock.ExpectPublish("physio.events", `"x"`).SetErr(errors.New("connection refused"))
	}

	for i := 0; i < 5; i++ {
		assert.Error(t, broker.Publish(context.Background(), "physio.events", "x"))
	}

	err := broker.Publish(context.Background(), "physio.events", "x")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}
