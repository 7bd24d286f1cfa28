package runner

import (
	"context"
	"time"
)

// Echo is a deterministic fake Runner for tests: it treats code as a
// function from stdin to stdout keyed by an injected lookup table,
// standing in for a real sandbox without ever executing untrusted code.
type Echo struct {
	// Responses maps code to a function producing output for a given
	// stdin. Code not present in Responses yields StatusRuntimeError.
	Responses map[string]func(stdin string) string
}

func NewEcho() *Echo {
	return &Echo{Responses: make(map[string]func(stdin string) string)}
}

func (e *Echo) Run(ctx context.Context, code, language, stdin string, opts Options) (RunResult, error) {
	start := time.Now()
	fn, ok := e.Responses[code]
	if !ok {
		return RunResult{Status: StatusRuntimeError, Elapsed: time.Since(start)}, nil
	}
	return RunResult{Stdout: fn(stdin), Status: StatusOK, Elapsed: time.Since(start)}, nil
}
