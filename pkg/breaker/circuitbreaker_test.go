package breaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/moerouter/pkg/breaker"
)

func TestCircuitBreaker_StateString(t *testing.T) {
	assert.Equal(t, "closed", breaker.StateClosed.String())
	assert.Equal(t, "open", breaker.StateOpen.String())
	assert.Equal(t, "half_open", breaker.StateHalfOpen.String())
	assert.Equal(t, "unknown", breaker.State(99).String())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 5, HalfOpenSuccessRequired: 2, OpenDuration: 50 * time.Millisecond}
	cb := breaker.New("anthropic", cfg)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		require.Equal(t, breaker.StateClosed, cb.State(), "should stay closed before threshold")
	}
	cb.RecordFailure()
	assert.Equal(t, breaker.StateOpen, cb.State())
	assert.False(t, cb.IsAvailable())
}

func TestCircuitBreaker_HalfOpenThenClose(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 2, HalfOpenSuccessRequired: 2, OpenDuration: 20 * time.Millisecond}
	cb := breaker.New("openai", cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, breaker.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.IsAvailable(), "should probe after open duration elapses")
	assert.Equal(t, breaker.StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, breaker.StateHalfOpen, cb.State(), "one success is not enough")
	cb.RecordSuccess()
	assert.Equal(t, breaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 1, HalfOpenSuccessRequired: 2, OpenDuration: 10 * time.Millisecond}
	cb := breaker.New("google", cfg)

	cb.RecordFailure()
	require.Equal(t, breaker.StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.IsAvailable())
	require.Equal(t, breaker.StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, breaker.StateOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := breaker.DefaultConfig()
	cb := breaker.New("mistral", cfg)

	for i := 0; i < cfg.FailureThreshold; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, breaker.StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.True(t, cb.IsAvailable())
}

func TestCircuitBreaker_OnTransition(t *testing.T) {
	cfg := breaker.Config{FailureThreshold: 1, HalfOpenSuccessRequired: 1, OpenDuration: time.Hour}
	cb := breaker.New("cohere", cfg)

	transitions := make(chan [2]breaker.State, 1)
	cb.OnTransition(func(provider string, from, to breaker.State) {
		assert.Equal(t, "cohere", provider)
		transitions <- [2]breaker.State{from, to}
	})

	cb.RecordFailure()

	select {
	case got := <-transitions:
		assert.Equal(t, breaker.StateClosed, got[0])
		assert.Equal(t, breaker.StateOpen, got[1])
	case <-time.After(time.Second):
		t.Fatal("OnTransition callback was not invoked")
	}
}

func TestRegistry_PerProviderIsolation(t *testing.T) {
	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 2, HalfOpenSuccessRequired: 1, OpenDuration: time.Hour})

	for i := 0; i < 2; i++ {
		reg.RecordFailure("openai")
	}

	assert.False(t, reg.IsAvailable("openai"))
	assert.True(t, reg.IsAvailable("anthropic"), "failures on one provider must not affect another")

	snap := reg.Snapshot()
	require.Len(t, snap, 2, "both providers were lazily created on first query")
}

func TestRegistry_Reset(t *testing.T) {
	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, HalfOpenSuccessRequired: 1, OpenDuration: time.Hour})
	reg.RecordFailure("openai")
	require.False(t, reg.IsAvailable("openai"))

	reg.Reset("openai")
	assert.True(t, reg.IsAvailable("openai"))
}
