package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifierStoresMessages(t *testing.T) {
	t.Parallel()

	n := New()
	id1, err := n.Publish(context.Background(), "catalog-published", map[string]string{"run_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := n.Publish(context.Background(), "catalog-audit", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := n.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "catalog-published", msgs[0].Topic)
	require.Equal(t, "catalog-audit", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.NotEqual(t, "modified", n.Messages()[0].Topic, "Messages must return a copy")
}

func TestNotifierFailWith(t *testing.T) {
	t.Parallel()

	n := New()
	n.FailWith(errors.New("topic not found"))
	_, err := n.Publish(context.Background(), "catalog-published", nil)
	require.EqualError(t, err, "topic not found")
	require.Empty(t, n.Messages())

	n.FailWith(nil)
	_, err = n.Publish(context.Background(), "catalog-published", nil)
	require.NoError(t, err)
}
