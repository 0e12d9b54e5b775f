package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_IsDefaultRegisterer(t *testing.T) {
	assert.Equal(t, prometheus.DefaultRegisterer, Registry)
}
