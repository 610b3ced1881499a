package widget

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch/dostavistahttp"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch/fake"
	"github.com/BearBump/DispatchBox/internal/markup"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClick_TimeoutWinsAndLateResponseIsDropped(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(r.URL.Query().Get("callback") + `({"order_id":1})`))
	}))
	defer srv.Close()

	var successes, failures atomic.Int32
	c := New(Options{
		Dispatcher: dostavistahttp.New(srv.URL, 30*time.Millisecond),
		Auth:       auth,
		Hooks: Hooks{
			SendSuccess: func(context.Context, Control, dispatch.Response) { successes.Add(1) },
			SendError:   func(context.Context, Control, error) { failures.Add(1) },
		},
	})

	out, err := c.Click(context.Background(), documentsButton("slow"))
	require.NoError(t, err)
	require.ErrorIs(t, out.Err, dispatch.ErrNoResponse)
	require.Equal(t, models.StateError, out.State.State)
	require.Equal(t, dispatch.ErrNoResponse.Error(), out.State.Title)

	close(release)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, successes.Load())
	require.Equal(t, int32(1), failures.Load())

	st, err := c.State(context.Background(), "slow", models.ControlButton)
	require.NoError(t, err)
	require.Equal(t, models.StateError, st.State)
}

func TestClick_FakeDispatcherRoundTrip(t *testing.T) {
	d := fake.New()
	c := New(Options{Dispatcher: d, Auth: auth})

	out, err := c.Click(context.Background(), documentsButton("docs"))
	require.NoError(t, err)
	require.Equal(t, models.StateSent, out.State.State)
	require.Equal(t, SentTitle(out.OrderID), out.State.Title)
	require.Len(t, d.Orders(), 1)

	// Ошибка API -> error -> клик сбрасывает -> следующий клик отправляет снова.
	d.FailWith("8193")
	_, err = c.Reset(context.Background(), "docs", models.ControlButton)
	require.NoError(t, err)

	out, _ = c.Click(context.Background(), documentsButton("docs"))
	require.Equal(t, models.StateError, out.State.State)

	out, _ = c.Click(context.Background(), documentsButton("docs"))
	require.True(t, out.Reset)

	d.FailWith()
	out, _ = c.Click(context.Background(), documentsButton("docs"))
	require.Equal(t, models.StateSent, out.State.State)
	require.Len(t, d.Orders(), 3)

	st := c.Stats()
	require.Equal(t, int64(4), st.Clicks)
	require.Equal(t, int64(3), st.Submitted)
	require.Equal(t, int64(2), st.Sent)
	require.Equal(t, int64(1), st.Failed)
}

func TestSetDebug(t *testing.T) {
	c := New(Options{})
	require.False(t, c.Debug())
	c.SetDebug(true)
	require.True(t, c.Debug())
	require.True(t, c.Stats().Debug)
}

func TestKeyedLocks_Cleanup(t *testing.T) {
	k := newKeyedLocks()
	unlock := k.Lock("a")
	require.Len(t, k.m, 1)
	unlock()
	require.Empty(t, k.m)
}

func TestSetAuth_EnablesSubmission(t *testing.T) {
	d := fake.New()
	c := New(Options{Dispatcher: d})

	out, err := c.Click(context.Background(), documentsButton("docs"))
	require.ErrorIs(t, err, ErrNoAuth)
	require.Equal(t, models.StateIdle, out.State.State)
	require.Empty(t, d.Orders())

	c.SetAuth(auth)
	require.Equal(t, auth, c.Auth())

	out, err = c.Click(context.Background(), documentsButton("docs"))
	require.NoError(t, err)
	require.Equal(t, models.StateSent, out.State.State)
	require.Len(t, d.Orders(), 1)
}

func TestDebugOff_ClickFailuresAreSilent(t *testing.T) {
	var buf bytes.Buffer
	dm := &dispatcherMock{}
	dm.On("Submit", mock.Anything, mock.Anything, auth).Return(dispatch.Response{}, errors.New("connection refused"))
	c := New(Options{
		Dispatcher: dm,
		Logger:     slog.New(slog.NewTextHandler(&buf, nil)),
		Debug:      false,
	})
	ctx := context.Background()

	_, err := c.Click(ctx, documentsButton("docs"))
	require.ErrorIs(t, err, ErrNoAuth)

	c.SetAuth(auth)
	out, err := c.Click(ctx, Control{ID: "empty", Kind: models.ControlButton, Items: []markup.Element{attrs{}}})
	require.NoError(t, err)
	require.Equal(t, models.StateError, out.State.State)

	out, err = c.Click(ctx, documentsButton("docs"))
	require.NoError(t, err)
	require.Equal(t, models.StateError, out.State.State)
	require.EqualError(t, out.Err, "connection refused")

	require.Empty(t, buf.String())

	c.SetDebug(true)
	_, _ = c.Reset(ctx, "docs", models.ControlButton)
	_, _ = c.Click(ctx, documentsButton("docs"))
	require.Contains(t, buf.String(), "order sending failed")
}

func TestDebugOff_SendErrorHookStillFires(t *testing.T) {
	var buf bytes.Buffer
	dm := &dispatcherMock{}
	dm.On("Submit", mock.Anything, mock.Anything, auth).Return(dispatch.Response{}, errors.New("connection refused"))

	var fired atomic.Int32
	c := New(Options{
		Dispatcher: dm,
		Auth:       auth,
		Logger:     slog.New(slog.NewTextHandler(&buf, nil)),
		Hooks: Hooks{SendError: func(ctx context.Context, ctl Control, err error) {
			require.Equal(t, "docs", ctl.ID)
			fired.Add(1)
		}},
	})

	out, err := c.Click(context.Background(), documentsButton("docs"))
	require.NoError(t, err)
	require.Equal(t, models.StateError, out.State.State)
	require.Equal(t, int32(1), fired.Load())
	require.Empty(t, buf.String())
}

func TestDebugOff_InfraWarningsStillLogged(t *testing.T) {
	var buf bytes.Buffer
	c := New(Options{
		Dispatcher: fake.New(),
		Auth:       auth,
		Events:     &eventsRecorder{err: errors.New("broker down")},
		Logger:     slog.New(slog.NewTextHandler(&buf, nil)),
	})

	out, err := c.Click(context.Background(), documentsButton("docs"))
	require.NoError(t, err)
	require.Equal(t, models.StateSent, out.State.State)
	require.Contains(t, buf.String(), "publish control state")
	require.Contains(t, buf.String(), "broker down")
}
