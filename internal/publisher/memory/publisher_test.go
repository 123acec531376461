package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

func TestPublishRecordsEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()

	id, err := pub.Publish(ctx, gazette.ArticleEvent{
		ArticleID: "royal_orders_1",
		SourceKey: "royal_orders",
		Title:     "أمر ملكي",
	})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = pub.Publish(ctx, gazette.ArticleEvent{ArticleID: "royal_orders_2", SourceKey: "royal_orders"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	events := pub.Events()
	require.Len(t, events, 2)
	require.Equal(t, "royal_orders_1", events[0].ArticleID)
	require.NoError(t, pub.Close())
}
