package telegram

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"gopkg.in/telebot.v3"
)

// defaultHTTPTimeout bounds every Bot API request, long polls included.
const defaultHTTPTimeout = time.Minute

// poller drives telebot's Poller without Bot.Start. Bot.Start and Bot.Stop
// swap the bot's internal stop channel while request goroutines read it,
// so shutdown is done by cancelling in-flight requests at the transport
// instead.
type poller struct {
	bot    *telebot.Bot
	cancel context.CancelFunc

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// newPollingClient returns a copy of base whose requests are cancelled
// once the returned cancel function runs.
func newPollingClient(base *http.Client) (*http.Client, context.CancelFunc) {
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}
	ctx, cancel := context.WithCancel(context.Background())
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := *base
	client.Transport = &cancelTransport{base: transport, ctx: ctx}
	return &client, cancel
}

func startPoller(bot *telebot.Bot, cancel context.CancelFunc) *poller {
	p := &poller{
		bot:    bot,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) run() {
	defer close(p.done)

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		p.bot.Poller.Poll(p.bot, p.bot.Updates, p.stop)
	}()

	for {
		select {
		case upd := <-p.bot.Updates:
			p.bot.ProcessUpdate(upd)
		case <-polled:
			return
		}
	}
}

// Stop ends polling and waits for the loop to exit or ctx to expire.
func (p *poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.cancel()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cancelTransport ties every request to a shared context on top of the
// request's own.
type cancelTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (c *cancelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	release := context.AfterFunc(c.ctx, cancel)
	done := func() {
		release()
		cancel()
	}

	resp, err := c.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		done()
		return nil, err
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: done}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
