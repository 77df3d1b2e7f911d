// Package poller fetches chunks from an HTTP source on an interval and feeds
// them to the carousel.
package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	// MinInterval is the shortest polling interval accepted.
	MinInterval  = 500 * time.Millisecond
	fetchTimeout = 30 * time.Second
)

// Sink receives fetched chunks.
type Sink interface {
	AppendChunk(ctx context.Context, data []byte) (added, total int, err error)
	RenderReplay(ctx context.Context) error
}

// Result describes one poll.
type Result struct {
	// Changed is false when the source reported or served the same content
	// as the previous successful poll.
	Changed bool
	Added   int
	Total   int
}

// Poller periodically downloads a chunk and appends it when it changed.
type Poller struct {
	url       string
	interval  time.Duration
	sink      Sink
	autoStart bool
	maxBytes  int64
	log       *slog.Logger
	client    *http.Client

	etag   string
	digest uint64
	seen   bool

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a poller for url. When autoStart is set every poll that leaves
// services in the state also asks the sink to start or refresh the rotation.
func New(url string, interval time.Duration, maxBytes int64, autoStart bool, sink Sink, log *slog.Logger) *Poller {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Poller{
		url:       url,
		interval:  interval,
		sink:      sink,
		autoStart: autoStart,
		maxBytes:  maxBytes,
		log:       log,
		client:    &http.Client{Timeout: fetchTimeout},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the loop in a goroutine. It does nothing once the poller
// has been started or stopped.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	go p.run()
}

// Stop requests graceful loop termination and waits until it is done.
// It is safe to call before Start and from several goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	first := !p.stopped
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}
	if first {
		close(p.stopCh)
	}
	<-p.doneCh
}

// RunOnce performs a single poll. It must not run concurrently with the loop
// started by Start.
func (p *Poller) RunOnce(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Result{}, err
	}
	if p.etag != "" {
		req.Header.Set("If-None-Match", p.etag)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch chunk: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Result{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch chunk: unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if p.maxBytes > 0 {
		body = io.LimitReader(resp.Body, p.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Result{}, fmt.Errorf("read chunk: %w", err)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return Result{}, fmt.Errorf("chunk exceeds %d bytes", p.maxBytes)
	}

	sum := xxh3.Hash(data)
	if p.seen && sum == p.digest {
		p.etag = resp.Header.Get("ETag")
		return Result{}, nil
	}

	added, total, err := p.sink.AppendChunk(ctx, data)
	if err != nil {
		return Result{}, err
	}
	p.digest, p.seen = sum, true
	p.etag = resp.Header.Get("ETag")

	if p.autoStart && total > 0 {
		if err := p.sink.RenderReplay(ctx); err != nil {
			p.log.Warn("rotation refresh failed", slog.String("error", err.Error()))
		}
	}
	return Result{Changed: true, Added: added, Total: total}, nil
}

func (p *Poller) run() {
	defer close(p.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	res, err := p.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("poll failed", slog.String("url", p.url), slog.String("error", err.Error()))
		}
		return
	}
	if res.Changed {
		p.log.Debug("poll applied", slog.Int("added", res.Added), slog.Int("total", res.Total))
	}
}
