package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

func testProber(t *testing.T) *Prober {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewProber(logger, 5*time.Second, DefaultTLSWarningDays)
}

func TestProber_ForTarget_UnknownCheckType(t *testing.T) {
	p := testProber(t)

	_, err := p.ForTarget(&model.Target{CheckType: "carrier_pigeon"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownCheckType)
}

func TestHTTPChecker_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckHTTP})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.True(t, outcome.Success)
	require.Greater(t, outcome.Latency, time.Duration(0))
	require.NotNil(t, outcome.Detail.HTTP)
	require.Equal(t, http.StatusOK, outcome.Detail.HTTP.StatusCode)
}

func TestHTTPChecker_Non200IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckHTTP})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.False(t, outcome.Success)
	require.Equal(t, model.FailureProtocol, outcome.Kind)
	require.Contains(t, outcome.Message, "HTTP 503")
}

func TestHTTPChecker_Only200IsUp(t *testing.T) {
	// Even a successful-looking 204 is a failure: 200 is the only healthy
	// status
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckHTTP})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.False(t, outcome.Success)
	require.Equal(t, model.FailureProtocol, outcome.Kind)
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckHTTP})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), "http://127.0.0.1:1")
	require.False(t, outcome.Success)
	require.Equal(t, model.FailureTransient, outcome.Kind)
}

func TestHTTPChecker_FallsBackToHTTPOnTLSError(t *testing.T) {
	// A plaintext server answering the HTTPS attempt produces a TLS record
	// error, which triggers the HTTP fallback for scheme-less addresses
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckHTTP})
	require.NoError(t, err)

	bare := strings.TrimPrefix(srv.URL, "http://")
	outcome := c.Check(context.Background(), bare)
	require.True(t, outcome.Success)
	require.NotNil(t, outcome.Detail.HTTP)
	require.True(t, outcome.Detail.HTTP.Fallback)
}

func TestContentChecker_AllKeywordsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>welcome to the status page, all systems operational</html>"))
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{
		CheckType:        model.CheckContent,
		RequiredKeywords: "welcome, operational",
	})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.True(t, outcome.Success)
	require.NotNil(t, outcome.Detail.Content)
	require.Greater(t, outcome.Detail.Content.ContentLength, 0)
}

func TestContentChecker_MissingRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nothing to see here"))
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{
		CheckType:        model.CheckContent,
		RequiredKeywords: "welcome,operational",
	})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.False(t, outcome.Success)
	require.Equal(t, model.FailureProtocol, outcome.Kind)
	require.Contains(t, outcome.Message, "welcome")
	require.Contains(t, outcome.Message, "operational")
	require.ElementsMatch(t, []string{"welcome", "operational"}, outcome.Detail.Content.MissingRequired)
}

func TestContentChecker_ForbiddenBeatsRequired(t *testing.T) {
	// Body contains a forbidden keyword AND is missing a required one; the
	// forbidden match must win
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Internal Server Error occurred"))
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{
		CheckType:         model.CheckContent,
		RequiredKeywords:  "welcome",
		ForbiddenKeywords: "Error",
	})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.False(t, outcome.Success)
	require.Contains(t, outcome.Message, "forbidden")
	require.Contains(t, outcome.Message, "Error")
	require.Equal(t, "Error", outcome.Detail.Content.ForbiddenFound)
}

func TestPingChecker_InvalidAddressIsConfigError(t *testing.T) {
	p := testProber(t)
	c, err := p.ForTarget(&model.Target{CheckType: model.CheckPing})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), "not a host")
	require.False(t, outcome.Success)
	require.True(t, outcome.ConfigError())
}

func TestContentChecker_Non200SkipsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("welcome operational"))
	}))
	defer srv.Close()

	p := testProber(t)
	c, err := p.ForTarget(&model.Target{
		CheckType:        model.CheckContent,
		RequiredKeywords: "welcome",
	})
	require.NoError(t, err)

	outcome := c.Check(context.Background(), srv.URL)
	require.False(t, outcome.Success)
	require.Contains(t, outcome.Message, "HTTP 502")
}
