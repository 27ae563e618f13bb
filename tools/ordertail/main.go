// Command ordertail follows the order journal stream of a running walletbot
// and logs every record. It reconnects from the last seen index.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
	"go.uber.org/zap"
)

type event struct {
	id   uint64
	name string
	data string
}

func main() {
	var (
		targetURL string
		after     uint64
		retry     time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/orders/stream", "order stream endpoint URL")
	flag.Uint64Var(&after, "after", 0, "skip records up to this journal index")
	flag.DurationVar(&retry, "retry", 5*time.Second, "reconnect delay")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{
		Transport: &http.Transport{
			DisableCompression: true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
		Timeout: 0, // streaming
	}

	for {
		last, err := follow(ctx, client, targetURL, after, func(ev event) {
			logRecord(logger, ev)
		})
		after = last
		if ctx.Err() != nil {
			return
		}
		logger.Warn("order stream disconnected", zap.Error(err), zap.Uint64("after", after), zap.Duration("retry", retry))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// follow reads the stream until it ends and returns the last index seen.
func follow(ctx context.Context, client *http.Client, target string, after uint64, fn func(event)) (uint64, error) {
	u, err := url.Parse(target)
	if err != nil {
		return after, errors.Wrap(err, "bad url")
	}
	q := u.Query()
	q.Set("after", strconv.FormatUint(after, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return after, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return after, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return after, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	err = readEvents(resp.Body, func(ev event) {
		if ev.id > after {
			after = ev.id
		}
		fn(ev)
	})
	return after, err
}

// readEvents parses server-sent events; comment lines are heartbeats and skipped.
func readEvents(r io.Reader, fn func(event)) error {
	scanner := bufio.NewScanner(r)
	var cur event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.data != "" {
				fn(cur)
			}
			cur = event{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			id, err := strconv.ParseUint(strings.TrimPrefix(line, "id: "), 10, 64)
			if err == nil {
				cur.id = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data += strings.TrimPrefix(line, "data: ")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func logRecord(logger *zap.Logger, ev event) {
	if ev.name != "order" {
		return
	}
	var rec orderjournal.Record
	if err := json.Unmarshal([]byte(ev.data), &rec); err != nil {
		logger.Warn("bad order record", zap.Error(err), zap.Uint64("index", ev.id))
		return
	}
	fields := []zap.Field{
		zap.Uint64("index", ev.id),
		zap.String("id", rec.ID),
		zap.Int64("user_id", rec.UserID),
		zap.String("status", string(rec.Status)),
		zap.String("kind", string(rec.Kind)),
		zap.String("symbol", rec.Symbol),
		zap.String("quantity", rec.Quantity.String()),
	}
	if !rec.Price.IsZero() {
		fields = append(fields, zap.String("price", rec.Price.String()))
	}
	if rec.Error != "" {
		fields = append(fields, zap.String("error", rec.Error))
	}
	logger.Info("order", fields...)
}
