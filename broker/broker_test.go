package broker

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
)

func TestNewSource_UnknownKind(t *testing.T) {
	deps := Deps{
		Config: config.BrokerConfig{Kind: "rabbitmq"},
		Logger: slog.Default(),
	}

	source, err := NewSource(context.Background(), deps)
	assert.Nil(t, source)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "unsupported kind should be an invalid-config error")
	assert.Contains(t, err.Error(), "rabbitmq")
}

func TestNewSource_EmptyKind(t *testing.T) {
	deps := Deps{Config: config.BrokerConfig{}}

	source, err := NewSource(context.Background(), deps)
	assert.Nil(t, source)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestKafkaSource_PendingDrainsInOrder(t *testing.T) {
	s := &kafkaSource{
		pending: [][]byte{[]byte("first"), []byte("second"), []byte("third")},
	}

	// Buffered records come out FIFO without touching the client
	payload, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), payload)

	payload, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)

	payload, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), payload)

	assert.Empty(t, s.pending)
}

func TestJetStreamSource_PendingDrainsInOrder(t *testing.T) {
	s := &jetStreamSource{
		pending: [][]byte{[]byte("a"), []byte("b")},
	}

	payload, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), payload)

	payload, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), payload)
}

func TestErrIdle_IsNotClassified(t *testing.T) {
	// ErrIdle is a control-flow signal: not transient, not invalid, not
	// fatal. The produce loop matches it explicitly.
	assert.False(t, errors.IsTransient(ErrIdle))
	assert.False(t, errors.IsInvalid(ErrIdle))
	assert.False(t, errors.IsFatal(ErrIdle))
}
