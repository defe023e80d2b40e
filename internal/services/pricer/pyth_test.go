package pricer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPythStreamer_ParsesUpdates(t *testing.T) {
	frames := []string{
		// 6000000000 * 10^-8 = 60.0
		"data: {\"parsed\":[{\"price\":{\"price\":\"6000000000\",\"expo\":-8}}]}\n\n",
		": heartbeat comment\n\n",
		"data: {\"parsed\":[{\"price\":{\"price\":\"6100000000\",\"expo\":-8}}]}\n\n",
	}
	srv := sseServer(t, frames)
	p := NewPythStreamerWithURL(srv.Client(), srv.URL)

	var got []decimal.Decimal
	err := p.Stream(context.Background(), "feed-id", func(price decimal.Decimal) {
		got = append(got, price)
	})
	// The stub closes the stream after the frames; the streamer reports
	// that so the caller can resubscribe.
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(decimal.NewFromInt(60)))
	assert.True(t, got[1].Equal(decimal.NewFromInt(61)))
}

func TestPythStreamer_SkipsMalformedFrames(t *testing.T) {
	frames := []string{
		"data: not json\n\n",
		"data: {\"parsed\":[{\"price\":{\"price\":\"500\",\"expo\":0}}]}\n\n",
	}
	srv := sseServer(t, frames)
	p := NewPythStreamerWithURL(srv.Client(), srv.URL)

	var got []decimal.Decimal
	_ = p.Stream(context.Background(), "feed-id", func(price decimal.Decimal) {
		got = append(got, price)
	})

	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(decimal.NewFromInt(500)))
}

func TestPythStreamer_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	p := NewPythStreamerWithURL(srv.Client(), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Stream(ctx, "feed-id", func(decimal.Decimal) {})
	assert.Error(t, err)
}

func TestPythStreamer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	p := NewPythStreamerWithURL(srv.Client(), srv.URL)

	err := p.Stream(context.Background(), "bad-feed", func(decimal.Decimal) {})
	assert.Error(t, err)
}
