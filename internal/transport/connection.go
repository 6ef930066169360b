package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/queue"
)

// DefaultMaxContentLength bounds a single message body.
const DefaultMaxContentLength = 64 << 20

const headerSeparator = ": "

// Connection frames JSON-RPC messages over a byte stream using
// Content-Length headers. Decoded messages are pushed to the inbox; envelopes
// popped from the outbox are written to the output stream.
type Connection struct {
	in  *bufio.Reader
	out *bufio.Writer

	closers []io.Closer

	inbox  *queue.Queue[ReceivedMessage]
	outbox *queue.Queue[*Envelope]

	logger           *zap.Logger
	maxContentLength int
	now              func() time.Time

	writeMu   sync.Mutex
	inputDone atomic.Bool
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) { c.logger = logger }
}

// WithMaxContentLength sets the largest accepted body. Zero disables the
// check.
func WithMaxContentLength(n int) Option {
	return func(c *Connection) { c.maxContentLength = n }
}

// WithClock overrides the receive timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) { c.now = now }
}

// NewConnection creates a connection reading from r and writing to w. If
// either implements io.Closer it is closed by Close.
func NewConnection(r io.Reader, w io.Writer, inbox *queue.Queue[ReceivedMessage], outbox *queue.Queue[*Envelope], opts ...Option) *Connection {
	c := &Connection{
		in:               bufio.NewReader(r),
		out:              bufio.NewWriter(w),
		inbox:            inbox,
		outbox:           outbox,
		logger:           zap.NewNop(),
		maxContentLength: DefaultMaxContentLength,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if rc, ok := r.(io.Closer); ok {
		c.closers = append(c.closers, rc)
	}
	if wc, ok := w.(io.Closer); ok && any(w) != any(r) {
		c.closers = append(c.closers, wc)
	}
	return c
}

type header struct {
	contentLength    int
	hasContentLength bool
	contentType      string
	hasContentType   bool
}

// readHeader reads header lines up to and including the blank separator
// line. It returns io.EOF only when the stream ends before any byte of a new
// message.
func (c *Connection) readHeader() (header, error) {
	var h header
	first := true
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			if first && line == "" && errors.Is(err, io.EOF) {
				return h, io.EOF
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return h, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}
		first = false

		if !strings.HasSuffix(line, "\r\n") {
			return h, fmt.Errorf("%w: line %q is not terminated by CRLF", ErrMalformedHeader, line)
		}
		line = strings.TrimSuffix(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, headerSeparator)
		if !ok {
			return h, fmt.Errorf("%w: expected %q separator in %q", ErrMalformedHeader, headerSeparator, line)
		}

		switch name {
		case jsonrpc2.HdrContentLength:
			if h.hasContentLength {
				return h, fmt.Errorf("%w: %s", ErrDuplicateHeader, name)
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return h, fmt.Errorf("%w: invalid %s %q", ErrMalformedHeader, name, value)
			}
			h.contentLength = n
			h.hasContentLength = true
		case jsonrpc2.HdrContentType:
			if h.hasContentType {
				return h, fmt.Errorf("%w: %s", ErrDuplicateHeader, name)
			}
			h.contentType = value
			h.hasContentType = true
		default:
			return h, fmt.Errorf("%w: %q", ErrUnknownHeader, name)
		}
	}

	if !h.hasContentLength {
		return h, ErrMissingContentLength
	}
	return h, nil
}

// ReadMessage reads and decodes one framed message. It returns io.EOF when
// the input ends cleanly between messages.
func (c *Connection) ReadMessage() (ReceivedMessage, error) {
	h, err := c.readHeader()
	if err != nil {
		return ReceivedMessage{}, err
	}
	if c.maxContentLength > 0 && h.contentLength > c.maxContentLength {
		return ReceivedMessage{}, fmt.Errorf("%w: %d > %d", ErrContentTooLarge, h.contentLength, c.maxContentLength)
	}

	body := make([]byte, h.contentLength)
	if n, err := io.ReadFull(c.in, body); err != nil {
		return ReceivedMessage{}, fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedBody, n, h.contentLength)
	}
	receivedAt := c.now()

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ReceivedMessage{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return ReceivedMessage{Envelope: env, ReceivedAt: receivedAt}, nil
}

// SendMessage encodes and writes one framed message, flushing the stream.
func (c *Connection) SendMessage(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.out, "%s: %d%s", jsonrpc2.HdrContentLength, len(data), jsonrpc2.HdrContentSeparator); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.out.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return c.out.Flush()
}

// Update performs one step of single-threaded processing: it writes every
// queued outgoing message and then reads at most one incoming message. It
// returns false once input has ended.
func (c *Connection) Update() bool {
	if err := c.FlushOutgoing(); err != nil {
		c.logger.Error("writing queued messages", zap.Error(err))
	}
	if c.inputDone.Load() {
		return false
	}

	msg, err := c.ReadMessage()
	if err != nil {
		c.endInput(err)
		return false
	}
	c.inbox.Push(msg)
	return true
}

// FlushOutgoing writes every queued outgoing message without blocking for
// new ones.
func (c *Connection) FlushOutgoing() error {
	var errs error
	for {
		env, ok := c.outbox.TryPop()
		if !ok {
			return errs
		}
		errs = multierr.Append(errs, c.SendMessage(env))
	}
}

// Listen reads input and writes output on separate goroutines. Input errors
// close the inbox but do not stop output; output runs until ctx is done and
// then drains whatever is still queued. Listen returns once output has
// stopped, without waiting for a reader blocked on the input stream.
func (c *Connection) Listen(ctx context.Context) error {
	readErr := make(chan error, 1)
	go func() { readErr <- c.processInput(ctx) }()

	writeErr := make(chan error, 1)
	go func() { writeErr <- c.processOutput(ctx) }()

	var err error
	select {
	case err = <-readErr:
	case <-ctx.Done():
	}
	return multierr.Append(err, <-writeErr)
}

func (c *Connection) processInput(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := c.ReadMessage()
		if err != nil {
			c.endInput(err)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		c.inbox.Push(msg)
	}
	return nil
}

func (c *Connection) processOutput(ctx context.Context) error {
	var errs error
	for {
		env, err := c.outbox.PopContext(ctx)
		if err != nil {
			break
		}
		if err := c.SendMessage(env); err != nil {
			c.logger.Error("writing message", zap.String("method", env.Method), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return multierr.Append(errs, c.FlushOutgoing())
}

func (c *Connection) endInput(err error) {
	if !c.inputDone.CAS(false, true) {
		return
	}
	if errors.Is(err, io.EOF) {
		c.logger.Info("reached end of input")
	} else {
		c.logger.Error("message read error", zap.Error(err))
	}
	c.inbox.Close()
}

// InputDone reports whether input processing has ended.
func (c *Connection) InputDone() bool {
	return c.inputDone.Load()
}

// Close closes the underlying streams.
func (c *Connection) Close() error {
	var err error
	for _, closer := range c.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
