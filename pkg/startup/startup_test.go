package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartup_StartsDependenciesBeforeDependents(t *testing.T) {
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	s := NewStartup(noopLogger(), 1)
	s.AddDependency(Func{Name: "migrations", Requires: []string{"database"}, StartFunc: record("migrations")})
	s.AddDependency(Func{Name: "database", StartFunc: record("database")})
	s.AddDependency(Func{Name: "redis", StartFunc: record("redis")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "migrations", "redis"}, order)
	assert.Equal(t, StartupStatusStarted, s.Status("migrations"))
}

func TestStartup_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	s := NewStartup(noopLogger(), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{Name: "database", StartFunc: func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestStartup_FailsAfterMaxAttempts(t *testing.T) {
	s := NewStartup(noopLogger(), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{Name: "kafka", StartFunc: func(context.Context) error {
		return errors.New("no brokers")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "no brokers")
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(Func{Name: "migrations", Requires: []string{"database"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered dependency 'database'")
}

func TestStartup_StopReversesStartOrder(t *testing.T) {
	var stopped []string
	stop := func(name string) func(context.Context) error {
		return func(context.Context) error {
			stopped = append(stopped, name)
			return nil
		}
	}

	s := NewStartup(noopLogger(), 1)
	s.AddDependency(Func{Name: "database", StopFunc: stop("database")})
	s.AddDependency(Func{Name: "redis", Requires: []string{"database"}, StopFunc: stop("redis")})
	s.AddDependency(Func{Name: "kafka", StopFunc: stop("kafka")})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"kafka", "redis", "database"}, stopped)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}
