package httpremote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	stdSync "sync"
	"time"

	"github.com/fitlocker/fitlocker/cursor"
	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

// Subscribe opens an SSE stream for records matching field == value. The
// handler fires immediately with the current matching set, then on every
// subsequent mutation of the collection. Delivery happens on a dedicated
// goroutine; handlers must not block. The returned Unsubscribe is safe to
// call multiple times.
func (c *Client) Subscribe(ctx context.Context, collection record.Collection, field string, value interface{}, handler store.SubscriptionHandler) (store.Unsubscribe, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, syncErrors.E(opSubscribe, component, syncErrors.KindValidation, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go c.streamLoop(subCtx, collection, field, string(encoded), handler)

	var once stdSync.Once
	return func() { once.Do(cancel) }, nil
}

// streamLoop keeps the SSE connection alive, resuming from the last seen
// cursor after transient failures.
func (c *Client) streamLoop(ctx context.Context, collection record.Collection, field, encodedValue string, handler store.SubscriptionHandler) {
	since := cursor.Zero
	delay := 250 * time.Millisecond
	const maxDelay = 10 * time.Second

	for {
		next, err := c.streamOnce(ctx, collection, field, encodedValue, since, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.WarnContext(ctx, "subscription stream dropped, reconnecting",
				slog.String("collection", string(collection)),
				slog.String("error", err.Error()),
				slog.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}
		since = next
		delay = 250 * time.Millisecond
	}
}

// streamOnce consumes one SSE connection until it ends, returning the last
// cursor observed.
func (c *Client) streamOnce(ctx context.Context, collection record.Collection, field string, encodedValue string, since cursor.Cursor, handler store.SubscriptionHandler) (cursor.Cursor, error) {
	path := fmt.Sprintf("%s/v1/collections/%s/feed?cursor=%s&field=%s&value=%s",
		c.baseURL, collection, encodeCursor(since),
		url.QueryEscape(field), url.QueryEscape(encodedValue))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return since, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Streaming request: bypass the client timeout, rely on ctx.
	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return since, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return since, fmt.Errorf("feed returned %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 10<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		var payload feedEvent
		if err := json.Unmarshal(bytes.TrimPrefix(line, []byte("data: ")), &payload); err != nil {
			return since, fmt.Errorf("decode feed payload: %w", err)
		}
		if payload.Cursor != "" {
			if parsed, err := cursor.Parse(payload.Cursor); err == nil {
				since = parsed
			}
		}
		handler(payload.Records)
	}
	return since, sc.Err()
}
