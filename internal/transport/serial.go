package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	ackTimeout = 500 * time.Millisecond
	maxRetries = 3
)

// SerialConfig selects the serial port.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Serial is a Transport over a serial port. Every data frame is acknowledged
// by the peer; unacknowledged frames are retransmitted.
type Serial struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	logger *slog.Logger

	writeMu sync.Mutex
	seqMu   sync.Mutex
	seq     uint8
	ackCh   chan uint8
	frames  chan []byte

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSerial opens the port and starts the reader.
func OpenSerial(cfg SerialConfig, logger *slog.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}
	// USB CDC ACM adapters expect DTR/RTS asserted.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)
	return NewSerial(port, logger), nil
}

// NewSerial runs the framing over an already open port.
func NewSerial(port io.ReadWriteCloser, logger *slog.Logger) *Serial {
	s := &Serial{
		port:   port,
		reader: bufio.NewReader(port),
		logger: logger.With("component", "serial"),
		ackCh:  make(chan uint8, 4),
		frames: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

// nextSeq cycles 1, 2, 3, 1.
func (s *Serial) nextSeq() uint8 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq = s.seq%3 + 1
	return s.seq
}

// Send writes payload as one data frame and waits for its acknowledgement,
// retransmitting on timeout.
func (s *Serial) Send(ctx context.Context, payload []byte) error {
	seq := s.nextSeq()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		raw, err := encodeData(seq, payload, attempt > 0)
		if err != nil {
			return err
		}
		if err := s.write(raw); err != nil {
			return err
		}
		s.logger.Debug("frame sent", "seq", seq, "len", len(payload), "attempt", attempt+1)

		timer := time.NewTimer(ackTimeout)
	wait:
		for {
			select {
			case got := <-s.ackCh:
				if got == seq {
					timer.Stop()
					return nil
				}
				s.logger.Debug("stale ack drained", "got", got, "want", seq)
			case <-timer.C:
				s.logger.Warn("ack timeout", "seq", seq, "attempt", attempt+1)
				break wait
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-s.done:
				timer.Stop()
				return ErrClosed
			}
		}
	}
	return fmt.Errorf("transport: no ack for seq %d after %d attempts", seq, maxRetries+1)
}

func (s *Serial) write(raw []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if _, err := s.port.Write(raw); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Receive returns the payload of the next data frame.
func (s *Serial) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Serial) readLoop() {
	defer s.wg.Done()
	backoff := 10 * time.Millisecond
	const maxBackoff = 5 * time.Second
	var lastSeq uint8

	for {
		raw, err := readFrame(s.reader)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || strings.Contains(err.Error(), "closed") {
				s.logger.Info("serial port closed", "err", err)
				s.Close()
				return
			}
			s.logger.Error("serial read error", "err", err)
			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 10 * time.Millisecond

		f, err := decodeFrame(raw)
		if err != nil {
			s.logger.Warn("frame dropped", "err", err)
			continue
		}
		if f.isACK() {
			select {
			case s.ackCh <- f.ackSeq():
			default:
			}
			continue
		}
		if err := s.write(encodeACK(f.seq())); err != nil {
			s.logger.Warn("ack write failed", "err", err)
		}
		if f.flags&flagRetrans != 0 && f.seq() == lastSeq {
			s.logger.Debug("duplicate frame dropped", "seq", f.seq())
			continue
		}
		lastSeq = f.seq()
		select {
		case s.frames <- f.payload:
		case <-s.done:
			return
		}
	}
}

// Close stops the reader and closes the port.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}

// Wait blocks until the reader has exited.
func (s *Serial) Wait() { s.wg.Wait() }
