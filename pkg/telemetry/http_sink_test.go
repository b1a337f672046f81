package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSink_Send(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.Client(), HTTPSinkConfig{
		CollectorURL: srv.URL + "/",
		ExperimentID: "exp@test",
		Testing:      true,
	}, nil)

	err := sink.Send(context.Background(), Payload{"event": "init", "interval": float64(2)})
	require.NoError(t, err)

	assert.Equal(t, telemetryEndpoint, gotPath)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "exp@test", gotHeaders.Get("X-Study-Id"))
	assert.Equal(t, "1", gotHeaders.Get("X-Study-Testing"))
	assert.NotEmpty(t, gotHeaders.Get("X-Request-Id"))
	assert.Equal(t, map[string]interface{}{"event": "init", "interval": float64(2)}, gotBody)
}

func TestHTTPSink_NoTestingHeader(t *testing.T) {
	var testingHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testingHeader = r.Header.Get("X-Study-Testing")
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.Client(), HTTPSinkConfig{CollectorURL: srv.URL}, nil)
	require.NoError(t, sink.Send(context.Background(), Payload{}))
	assert.Empty(t, testingHeader)
}

func TestHTTPSink_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.Client(), HTTPSinkConfig{CollectorURL: srv.URL}, nil)
	err := sink.Send(context.Background(), Payload{"event": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSink_UnmarshalablePayload(t *testing.T) {
	sink := NewHTTPSink(http.DefaultClient, HTTPSinkConfig{CollectorURL: "http://127.0.0.1:1"}, nil)
	err := sink.Send(context.Background(), Payload{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, NewLogSink(nil).Send(context.Background(), Payload{"a": "b"}))
}
