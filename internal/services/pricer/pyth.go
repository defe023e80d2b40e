package pricer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const pythBaseURL = "https://hermes.pyth.network"

// PythStreamer subscribes to the Pyth Hermes SSE price stream for one feed
// id and delivers every parsed update in arrival order.
type PythStreamer struct {
	client  *http.Client
	baseURL string
}

func NewPythStreamer() *PythStreamer {
	// No overall timeout: the response body is a long-lived stream.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &PythStreamer{
		client:  &http.Client{Transport: transport},
		baseURL: pythBaseURL,
	}
}

// NewPythStreamerWithURL is used by tests to point at a stub server.
func NewPythStreamerWithURL(client *http.Client, baseURL string) *PythStreamer {
	return &PythStreamer{client: client, baseURL: baseURL}
}

func (p *PythStreamer) Name() string { return "pyth" }

type pythUpdate struct {
	Parsed []struct {
		Price struct {
			Price string `json:"price"`
			Expo  int32  `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

// Stream connects to Hermes and invokes onPrice once per received price
// update until the stream ends, errors, or ctx is cancelled.
func (p *PythStreamer) Stream(ctx context.Context, feedID string, onPrice func(decimal.Decimal)) error {
	url := fmt.Sprintf("%s/v2/updates/price/stream?ids[]=%s", p.baseURL, feedID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "pyth stream connect failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("pyth stream HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		// SSE frames end with a blank line; only data fields matter here,
		// comments and event names are skipped.
		if line == "" {
			if data.Len() > 0 {
				p.dispatch(data.String(), onPrice)
				data.Reset()
			}
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimSpace(payload))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "pyth stream read failed")
	}
	return errors.New("pyth stream closed by server")
}

func (p *PythStreamer) dispatch(payload string, onPrice func(decimal.Decimal)) {
	var update pythUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return
	}
	for _, entry := range update.Parsed {
		raw, err := decimal.NewFromString(entry.Price.Price)
		if err != nil {
			continue
		}
		onPrice(raw.Shift(entry.Price.Expo))
	}
}
