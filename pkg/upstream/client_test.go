package upstream

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hotelops/rate-proxy/internal/testutil"
	"github.com/hotelops/rate-proxy/pkg/rates"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mock *testutil.MockPricing) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL: mock.URL(),
		Token:   "test-token",
		Timeout: 5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{Token: "t"}, zerolog.Nop())
	require.Error(t, err)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, zerolog.Nop())
	require.Error(t, err)
}

func TestFetchBatch(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetRate("Summer", "FloatingPointResort", "SingletonRoom", "12000")
	mock.SetRate("Winter", "FloatingPointResort", "SingletonRoom", "9500")

	client := newTestClient(t, mock)
	result := client.FetchBatch(context.Background(), []rates.Tuple{
		{Period: "Summer", Hotel: "FloatingPointResort", Room: "SingletonRoom"},
		{Period: "Winter", Hotel: "FloatingPointResort", Room: "SingletonRoom"},
		{Period: "Spring", Hotel: "GitawayHotel", Room: "BooleanTwin"}, // unknown
	})

	rate, ok := result.Lookup("Summer", "FloatingPointResort", "SingletonRoom")
	require.True(t, ok)
	assert.Equal(t, "12000", rate)

	rate, ok = result.Lookup("Winter", "FloatingPointResort", "SingletonRoom")
	require.True(t, ok)
	assert.Equal(t, "9500", rate)

	// Unknown tuples are absent, not nil entries.
	_, ok = result.Lookup("Spring", "GitawayHotel", "BooleanTwin")
	assert.False(t, ok)

	assert.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, 3, mock.LastBatchSize())
	assert.Equal(t, "test-token", mock.LastToken())
}

func TestFetchBatch_EmptyInput(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()

	client := newTestClient(t, mock)
	result := client.FetchBatch(context.Background(), nil)

	assert.Empty(t, result)
	assert.Equal(t, 0, mock.RequestCount(), "no wire call for an empty batch")
}

func TestFetchBatch_ServerError(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetStatus(http.StatusInternalServerError)

	client := newTestClient(t, mock)
	result := client.FetchBatch(context.Background(), []rates.Tuple{
		{Period: "Summer", Hotel: "FloatingPointResort", Room: "SingletonRoom"},
	})

	assert.Empty(t, result, "non-success status yields an empty map, not an error")
}

func TestFetchBatch_Unreachable(t *testing.T) {
	client, err := New(Config{
		BaseURL: "http://127.0.0.1:1",
		Token:   "t",
		Timeout: 500 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)

	result := client.FetchBatch(context.Background(), []rates.Tuple{
		{Period: "Summer", Hotel: "FloatingPointResort", Room: "SingletonRoom"},
	})
	assert.Empty(t, result)
}

func TestFetchSingle(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetRate("Autumn", "RecursionRetreat", "RestfulKing", "7800")

	client := newTestClient(t, mock)
	rate, ok := client.FetchSingle(context.Background(), rates.Tuple{
		Period: "Autumn", Hotel: "RecursionRetreat", Room: "RestfulKing",
	})

	require.True(t, ok)
	assert.Equal(t, "7800", rate)
	assert.Equal(t, 1, mock.LastBatchSize(), "single fetch is a one-element batch")
}

func TestFetchSingle_Unknown(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()

	client := newTestClient(t, mock)
	_, ok := client.FetchSingle(context.Background(), rates.Tuple{
		Period: "Summer", Hotel: "FloatingPointResort", Room: "SingletonRoom",
	})
	assert.False(t, ok)
}

func TestRateMap_LookupEmpty(t *testing.T) {
	var m RateMap
	_, ok := m.Lookup("Summer", "FloatingPointResort", "SingletonRoom")
	assert.False(t, ok)
}
