package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_ConfigErrorExitsNonZero(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("RATE_API_URL", "")
	t.Setenv("RATE_API_TOKEN", "")
	t.Setenv("RATE_API_QUOTA", "")

	assert.Equal(t, 1, run())
}

func TestRun_InvalidRedisURLExitsNonZero(t *testing.T) {
	t.Setenv("REDIS_URL", "not-a-redis-url")
	t.Setenv("RATE_API_URL", "https://rates.example.com")
	t.Setenv("RATE_API_TOKEN", "secret")
	t.Setenv("RATE_API_QUOTA", "1000")

	assert.Equal(t, 1, run())
}
