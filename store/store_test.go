package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/store"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisStore := store.NewRedisStoreFromClient(client, "test:", zap.NewNop())

	return map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			item := &store.Item{PK: "USR#1", SK: "META", Type: "user", Data: map[string]any{"email": "a@b.com"}}
			require.NoError(t, s.Put(ctx, item, store.ConditionNone()))

			got, err := s.Get(ctx, "USR#1", "META")
			require.NoError(t, err)
			require.Equal(t, "a@b.com", got.Data["email"])
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "USR#missing", "META")
			require.True(t, errs.Is(err, errs.KindNotFound))
		})
	}
}

func TestConditionNotExistsPreventsOverwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			item := &store.Item{PK: "USR#1", SK: "META", Type: "user", Data: map[string]any{}}
			require.NoError(t, s.Put(ctx, item, store.ConditionNotExists()))
			err := s.Put(ctx, item, store.ConditionNotExists())
			require.True(t, errs.Is(err, errs.KindPreconditionFailed))
		})
	}
}

func TestConditionAttrEqualsGuardsTransition(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			item := &store.Item{PK: "SGJOB#1", SK: "META", Type: "job", Data: map[string]any{"status": "PENDING"}}
			require.NoError(t, s.Put(ctx, item, store.ConditionNone()))

			item.Data["status"] = "PROCESSING"
			require.NoError(t, s.Put(ctx, item, store.ConditionAttrEquals("status", "PENDING")))

			item.Data["status"] = "PROCESSING_AGAIN"
			err := s.Put(ctx, item, store.ConditionAttrEquals("status", "PENDING"))
			require.True(t, errs.Is(err, errs.KindPreconditionFailed))
		})
	}
}

func TestQueryIndexDescendingWithPagination(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				item := &store.Item{
					PK: "PROB#bj#100" + fmt.Sprint(i), SK: "META", Type: "problem",
					Data:   map[string]any{},
					GSI3PK: "PROB#DRAFT",
					GSI3SK: fmt.Sprintf("%020d", 1000+i),
				}
				require.NoError(t, s.Put(ctx, item, store.ConditionNone()))
			}

			page, err := s.QueryIndex(ctx, 3, "PROB#DRAFT", true, 2, "")
			require.NoError(t, err)
			require.Len(t, page.Items, 2)
			require.NotEmpty(t, page.Cursor)
			require.Equal(t, fmt.Sprintf("%020d", 1004), page.Items[0].GSI3SK)

			page2, err := s.QueryIndex(ctx, 3, "PROB#DRAFT", true, 2, page.Cursor)
			require.NoError(t, err)
			require.Len(t, page2.Items, 2)
			require.Equal(t, fmt.Sprintf("%020d", 1002), page2.Items[0].GSI3SK)
		})
	}
}

func TestDeleteRemovesFromIndexes(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			item := &store.Item{PK: "PROB#bj#1", SK: "META", Data: map[string]any{}, GSI3PK: "PROB#DRAFT", GSI3SK: "1"}
			require.NoError(t, s.Put(ctx, item, store.ConditionNone()))
			require.NoError(t, s.Delete(ctx, "PROB#bj#1", "META", store.ConditionNone()))

			page, err := s.QueryIndex(ctx, 3, "PROB#DRAFT", false, 0, "")
			require.NoError(t, err)
			require.Empty(t, page.Items)
		})
	}
}
