package metricsfx

import (
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpServerConfigProvider_Defaults(t *testing.T) {
	config, err := HttpServerConfigProvider(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9180", config.Address)
	assert.Equal(t, 5*time.Second, config.ReadTimeout)
	assert.Equal(t, 5*time.Second, config.WriteTimeout)
	assert.False(t, config.EnableRequestsLog)
}

func TestHttpServer_Routes(t *testing.T) {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	router, err := HttpRouter()
	require.NoError(t, err)

	router.Handle("/metrics/rotations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).Methods("GET")

	server, err := HttpServer(
		&HttpServerConfig{Address: ":0", EnableRequestsLog: true},
		logger,
		log.New(ioutil.Discard, "", 0),
		router,
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/rotations", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics/rotations", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
