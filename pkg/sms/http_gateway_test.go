package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPGateway(t *testing.T) {
	config := HTTPConfig{
		APIURL:   "https://sms.example.com/v1/",
		APIKey:   "key",
		SenderID: "STAYNS",
	}

	gateway := NewHTTPGateway(config)

	assert.NotNil(t, gateway)
	assert.Equal(t, "https://sms.example.com/v1", gateway.apiURL)
	assert.Equal(t, config.APIKey, gateway.apiKey)
	assert.Equal(t, "http", gateway.GetName())
	assert.NotNil(t, gateway.client)
}

func TestHTTPGatewaySend(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sms", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			var req SendSMSRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "+919876543210", req.To)

			json.NewEncoder(w).Encode(SendSMSResponse{Status: "success", MessageID: "msg_1"})
		}))
		defer srv.Close()

		gateway := NewHTTPGateway(HTTPConfig{APIURL: srv.URL, APIKey: "key"})
		id, err := gateway.Send(context.Background(), "98765 43210", "hello")
		require.NoError(t, err)
		assert.Equal(t, "msg_1", id)
	})

	t.Run("Gateway Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(SendSMSResponse{Status: "failed", Comment: "blocked", ErrCode: "E01"})
		}))
		defer srv.Close()

		gateway := NewHTTPGateway(HTTPConfig{APIURL: srv.URL, APIKey: "key"})
		_, err := gateway.Send(context.Background(), "9876543210", "hello")
		assert.Error(t, err)
	})

	t.Run("Invalid Phone", func(t *testing.T) {
		gateway := NewHTTPGateway(HTTPConfig{APIURL: "http://127.0.0.1:1", APIKey: "key"})
		_, err := gateway.Send(context.Background(), "12345", "hello")
		assert.Error(t, err)
	})
}

func TestLogGateway(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gateway := NewLogGateway(logger)
	id, err := gateway.Send(context.Background(), "9876543210", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "log", gateway.GetName())
}
