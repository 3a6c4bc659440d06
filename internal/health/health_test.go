package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllHealthy(t *testing.T) {
	c := NewChecker(time.Second)
	c.Add("database", func(context.Context) error { return nil })
	c.Add("blob", func(context.Context) error { return nil })

	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Len(t, res.Components, 2)
}

func TestCheckReportsFailingComponent(t *testing.T) {
	c := NewChecker(time.Second)
	c.Add("database", func(context.Context) error { return nil })
	c.Add("redis", func(context.Context) error { return errors.New("connection refused") })

	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, StatusHealthy, res.Components["database"].Status)
	assert.Equal(t, "connection refused", res.Components["redis"].Message)
}

func TestCheckAppliesTimeout(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Components["slow"].Status)
}

func TestHandlerStatusCodes(t *testing.T) {
	c := NewChecker(time.Second)
	rec := httptest.NewRecorder()
	c.Handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	c.Add("broken", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.Handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
