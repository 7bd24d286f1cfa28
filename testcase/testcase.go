// Package testcase implements the Test-Case Store (C4): gzipped JSON
// blobs in an object store, keyed deterministically per problem, with
// the Problem item's tcc count kept convergent via a compensating
// retry loop per §4.3.
package testcase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/objectstore"
	"github.com/algojudge/corejudge/repo"
)

// Case is one test case: an input and its expected output, identified
// within a problem's manifest.
type Case struct {
	ID     string `json:"id"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// gzipLevel is the default compression level for blob writes (§4.3:
// "Gzip level 6 by default").
const gzipLevel = gzip.DefaultCompression

// maxTccRetries bounds the compensating retry described in §4.3: "the
// worker retries until both agree". A persistent divergence beyond this
// is returned to the caller rather than looped on inside a task; Diverged
// reports it, and the orphan-recovery sweep does not check it.
const maxTccRetries = 3

// Store is the Test-Case Store. It owns both the blob object store and
// the Problem repo's tcc field, since writes must keep the two
// convergent.
type Store struct {
	objects  objectstore.Store
	problems *repo.ProblemRepo
	logger   *zap.Logger
}

func New(objects objectstore.Store, problems *repo.ProblemRepo, logger *zap.Logger) *Store {
	return &Store{objects: objects, problems: problems, logger: logger}
}

// Key returns the deterministic object-store key for a problem's
// test-case blob (§4.3: "testcases/{platform}/{problem_id}/testcases.json.gz").
func Key(platform, problemID string) string {
	return fmt.Sprintf("testcases/%s/%s/testcases.json.gz", platform, problemID)
}

// Read decompresses and decodes the full ordered list of test cases for
// a problem. Returns errs.KindNotFound if no blob has been written yet.
func (s *Store) Read(ctx context.Context, platform, problemID string) ([]Case, error) {
	body, _, err := s.objects.Get(ctx, Key(platform, problemID))
	if err != nil {
		return nil, err
	}
	return decode(body)
}

// Write replaces the full test-case list for a problem and updates the
// Problem item's tcc in the same logical operation (§4.3: "write-then-swap
// semantics via object versioning"). If the tcc update fails after the
// blob write succeeds, Write makes up to maxTccRetries attempts at the
// tcc update in total before returning the divergence to the caller as
// a KindTransient error.
func (s *Store) Write(ctx context.Context, platform, problemID string, cases []Case) error {
	body, err := encode(cases)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "encode test cases", err)
	}

	if _, err := s.objects.Put(ctx, Key(platform, problemID), body); err != nil {
		return errs.Wrap(errs.KindTransient, "write test case blob", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxTccRetries; attempt++ {
		lastErr = s.problems.SetTestCaseCount(ctx, platform, problemID, len(cases))
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("tcc update failed after blob write, retrying",
			zap.String("platform", platform), zap.String("problem_id", problemID),
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}

	s.logger.Error("tcc left diverged from test-case blob; awaiting orphan recovery",
		zap.String("platform", platform), zap.String("problem_id", problemID), zap.Error(lastErr))
	return errs.Wrap(errs.KindTransient, "tcc update did not converge with blob write", lastErr)
}

// Append adds cases to the existing manifest (or creates one if absent)
// and rewrites the blob and tcc together.
func (s *Store) Append(ctx context.Context, platform, problemID string, cases []Case) error {
	existing, err := s.Read(ctx, platform, problemID)
	if err != nil && !errs.Is(err, errs.KindNotFound) {
		return err
	}
	return s.Write(ctx, platform, problemID, append(existing, cases...))
}

// Diverged reports whether the stored blob's length disagrees with the
// Problem item's tcc, the persistent divergence a failed compensating
// retry leaves behind. RecoverOrphanedJobs does not call it.
func (s *Store) Diverged(ctx context.Context, platform, problemID string) (bool, error) {
	p, err := s.problems.Get(ctx, platform, problemID)
	if err != nil {
		return false, err
	}
	cases, err := s.Read(ctx, platform, problemID)
	if errs.Is(err, errs.KindNotFound) {
		return p.TestCaseCount != 0, nil
	}
	if err != nil {
		return false, err
	}
	return len(cases) != p.TestCaseCount, nil
}

func encode(cases []Case) ([]byte, error) {
	raw, err := json.Marshal(cases)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzipLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(body []byte) ([]Case, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "open test case gzip stream", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "read test case gzip stream", err)
	}

	var cases []Case
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "decode test case json", err)
	}
	return cases, nil
}
