package testcase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/objectstore"
	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/store"
	"github.com/algojudge/corejudge/testcase"
)

func setup(t *testing.T) (*testcase.Store, *repo.ProblemRepo) {
	t.Helper()
	s := store.NewMemoryStore()
	problems := repo.NewProblemRepo(s)
	objects := objectstore.NewMemoryStore()
	require.NoError(t, problems.Create(context.Background(), &repo.Problem{Platform: "bj", ProblemID: "1000"}))
	return testcase.New(objects, problems, zap.NewNop()), problems
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	tc, _ := setup(t)
	ctx := context.Background()

	cases := []testcase.Case{
		{ID: "1", Input: "1 2", Output: "3"},
		{ID: "2", Input: "4 5", Output: "9"},
	}
	require.NoError(t, tc.Write(ctx, "bj", "1000", cases))

	got, err := tc.Read(ctx, "bj", "1000")
	require.NoError(t, err)
	require.Equal(t, cases, got)
}

func TestWriteUpdatesProblemTcc(t *testing.T) {
	tc, problems := setup(t)
	ctx := context.Background()

	require.NoError(t, tc.Write(ctx, "bj", "1000", []testcase.Case{{ID: "1", Input: "a", Output: "b"}}))

	p, err := problems.Get(ctx, "bj", "1000")
	require.NoError(t, err)
	require.Equal(t, 1, p.TestCaseCount)
}

func TestAppendGrowsManifest(t *testing.T) {
	tc, problems := setup(t)
	ctx := context.Background()

	require.NoError(t, tc.Append(ctx, "bj", "1000", []testcase.Case{{ID: "1", Input: "a", Output: "b"}}))
	require.NoError(t, tc.Append(ctx, "bj", "1000", []testcase.Case{{ID: "2", Input: "c", Output: "d"}}))

	got, err := tc.Read(ctx, "bj", "1000")
	require.NoError(t, err)
	require.Len(t, got, 2)

	p, err := problems.Get(ctx, "bj", "1000")
	require.NoError(t, err)
	require.Equal(t, 2, p.TestCaseCount)
}

func TestDivergedDetectsMismatch(t *testing.T) {
	tc, problems := setup(t)
	ctx := context.Background()

	require.NoError(t, tc.Write(ctx, "bj", "1000", []testcase.Case{{ID: "1", Input: "a", Output: "b"}}))

	diverged, err := tc.Diverged(ctx, "bj", "1000")
	require.NoError(t, err)
	require.False(t, diverged)

	// Simulate a tcc that disagrees with the blob by bypassing Write and
	// changing only the Problem's tcc, leaving the object store untouched.
	cases, err := tc.Read(ctx, "bj", "1000")
	require.NoError(t, err)
	require.NoError(t, overwriteTcc(ctx, t, problems))
	_ = cases

	diverged, err = tc.Diverged(ctx, "bj", "1000")
	require.NoError(t, err)
	require.True(t, diverged)
}

// overwriteTcc mutates the Problem's tcc directly, independent of
// the test-case blob, to simulate the divergence that a compensating
// retry exhaustion would leave behind.
func overwriteTcc(ctx context.Context, t *testing.T, problems *repo.ProblemRepo) error {
	t.Helper()
	p, err := problems.Get(ctx, "bj", "1000")
	require.NoError(t, err)
	p.TestCaseCount = 5
	return problems.Update(ctx, p)
}
