package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/store"
)

func TestProblemListByStatusTransition(t *testing.T) {
	s := store.NewMemoryStore()
	problems := repo.NewProblemRepo(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, problems.Create(ctx, &repo.Problem{
			Platform: "baekjoon", ProblemID: string(rune('a' + i)),
			Completed: false, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, problems.Create(ctx, &repo.Problem{
			Platform: "baekjoon", ProblemID: string(rune('x' + i)),
			Completed: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
	}

	drafts, _, err := problems.ListByStatus(ctx, false, 100, "")
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	require.NoError(t, problems.MarkCompleted(ctx, "baekjoon", "a"))

	drafts, _, err = problems.ListByStatus(ctx, false, 100, "")
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	completed, _, err := problems.ListByStatus(ctx, true, 100, "")
	require.NoError(t, err)
	require.Len(t, completed, 3)
}

func TestProblemSoftDeleteUnreachable(t *testing.T) {
	s := store.NewMemoryStore()
	problems := repo.NewProblemRepo(s)
	ctx := context.Background()

	require.NoError(t, problems.Create(ctx, &repo.Problem{Platform: "cf", ProblemID: "1"}))
	require.NoError(t, problems.SoftDelete(ctx, "cf", "1", "policy_violation"))

	_, err := problems.Get(ctx, "cf", "1")
	require.Error(t, err)
}

func TestHistoryPublicFeedOrderingAndToggle(t *testing.T) {
	s := store.NewMemoryStore()
	histories := repo.NewHistoryRepo(s)
	ctx := context.Background()

	h1 := &repo.History{Email: "a@b.com", Platform: "bj", ProblemNumber: "1000", Passed: 2, Failed: 0, Total: 2, Public: true}
	require.NoError(t, histories.Create(ctx, h1))
	time.Sleep(2 * time.Millisecond)
	h2 := &repo.History{Email: "a@b.com", Platform: "bj", ProblemNumber: "1000", Passed: 1, Failed: 1, Total: 2, Public: true}
	require.NoError(t, histories.Create(ctx, h2))
	time.Sleep(2 * time.Millisecond)
	h3 := &repo.History{Email: "a@b.com", Platform: "bj", ProblemNumber: "1000", Passed: 0, Failed: 2, Total: 2, Public: false}
	require.NoError(t, histories.Create(ctx, h3))

	feed, _, err := histories.ListPublicFeed(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Equal(t, h2.ID, feed[0].ID)
	require.Equal(t, h1.ID, feed[1].ID)

	require.NoError(t, histories.SetPublic(ctx, h3.Email, h3.Platform, h3.ProblemNumber, h3.ID, true))
	feed, _, err = histories.ListPublicFeed(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, feed, 3)
}

func TestHistorySetHintsOnlyOnce(t *testing.T) {
	s := store.NewMemoryStore()
	histories := repo.NewHistoryRepo(s)
	ctx := context.Background()

	h := &repo.History{Email: "a@b.com", Platform: "bj", ProblemNumber: "1000", Passed: 1, Failed: 1, Total: 2}
	require.NoError(t, histories.Create(ctx, h))

	require.NoError(t, histories.SetHints(ctx, h.Email, h.Platform, h.ProblemNumber, h.ID, []string{"check edge case"}))
	require.NoError(t, histories.SetHints(ctx, h.Email, h.Platform, h.ProblemNumber, h.ID, []string{"different hint"}))

	got, err := histories.Get(ctx, h.Email, h.Platform, h.ProblemNumber, h.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"check edge case"}, got.Hints)
}
