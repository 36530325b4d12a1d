package hl7v2

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MLLPStartBlock is the MLLP start-of-message byte (VT).
	MLLPStartBlock = 0x0B

	// MLLPEndBlock is the MLLP end-of-message byte (FS).
	MLLPEndBlock = 0x1C

	// MLLPCarriageReturn is the trailing CR after the end block.
	MLLPCarriageReturn = 0x0D

	// mllpMaxMessageSize caps the buffer for a single framed message (1 MB).
	mllpMaxMessageSize = 1 << 20

	// mllpReadTimeout is the read deadline applied to each connection.
	mllpReadTimeout = 30 * time.Second
)

// RawHandler is called for each received MLLP frame with the raw message
// bytes and, when the frame parsed, the parsed message (nil on parse
// failure). It returns the ACK to send back, or nil for no response.
//
// The inbound pipeline uses this to durably enqueue the raw bytes before any
// processing happens; parse failures are still queued so the error table gets
// a record of them.
type RawHandler func(raw []byte, msg *Message) *Message

// MLLPServer accepts HL7v2 messages over MLLP/TCP and hands each frame to a
// RawHandler.
type MLLPServer struct {
	addr     string
	handler  RawHandler
	logger   zerolog.Logger
	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMLLPServer creates a server that will listen on addr and dispatch each
// received frame to handler.
func NewMLLPServer(addr string, handler RawHandler, logger zerolog.Logger) *MLLPServer {
	return &MLLPServer{
		addr:    addr,
		handler: handler,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins listening. The accept loop runs in a background goroutine.
func (s *MLLPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mllp: listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	return nil
}

// Stop closes the listener and all tracked connections, then waits for every
// connection goroutine to finish.
func (s *MLLPServer) Stop() error {
	close(s.done)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Addr returns the bound listener address; useful when started with port 0.
func (s *MLLPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *MLLPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("mllp accept error")
			return
		}

		s.trackConn(conn, true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.trackConn(conn, false)
			defer conn.Close()
			s.handleConnection(conn)
		}()
	}
}

func (s *MLLPServer) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// handleConnection reads frames off conn until it goes idle or closes,
// dispatching every complete frame to the handler.
func (s *MLLPServer) handleConnection(conn net.Conn) {
	buf := make([]byte, 0, 4096)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(mllpReadTimeout))

		n, err := conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)

			if len(buf) > mllpMaxMessageSize {
				s.logger.Warn().Msg("mllp frame exceeds max size, closing connection")
				return
			}

			for {
				msgBytes, rest, found := UnframeMessage(buf)
				if !found {
					break
				}
				buf = rest
				s.dispatch(conn, msgBytes)
			}
		}

		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if len(buf) == 0 {
					return
				}
				continue
			}
			return
		}
	}
}

// dispatch hands one unframed message to the handler and writes back its ACK.
func (s *MLLPServer) dispatch(conn net.Conn, raw []byte) {
	msg, err := Parse(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("mllp received unparseable frame")
		msg = nil
	}

	ack := s.handler(raw, msg)
	if ack == nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write(FrameMessage([]byte(ack.String()))); err != nil {
		s.logger.Error().Err(err).Msg("mllp ack write error")
	}
}

// FrameMessage wraps raw HL7v2 bytes in MLLP framing:
//
//	<0x0B> + message + <0x1C><0x0D>
func FrameMessage(data []byte) []byte {
	frame := make([]byte, 0, len(data)+3)
	frame = append(frame, MLLPStartBlock)
	frame = append(frame, data...)
	frame = append(frame, MLLPEndBlock, MLLPCarriageReturn)
	return frame
}

// UnframeMessage extracts one message from an MLLP byte stream. It returns
// the message, the remaining bytes after its frame, and whether a complete
// frame was present.
func UnframeMessage(data []byte) (message []byte, rest []byte, found bool) {
	startIdx := bytes.IndexByte(data, MLLPStartBlock)
	if startIdx == -1 {
		return nil, data, false
	}

	endSeq := []byte{MLLPEndBlock, MLLPCarriageReturn}
	endIdx := bytes.Index(data[startIdx+1:], endSeq)
	if endIdx == -1 {
		return nil, data, false
	}
	endIdx = startIdx + 1 + endIdx

	return data[startIdx+1 : endIdx], data[endIdx+2:], true
}

// GenerateACK builds an HL7v2 ACK for the given incoming message. ackCode is
// "AA" (accept), "AE" (error), or "AR" (reject). The ACK echoes the incoming
// control ID in MSA-2 and the incoming version in MSH-12.
func GenerateACK(incoming *Message, ackCode string) *Message {
	now := time.Now().UTC()
	version := "2.5"
	controlID := ""
	if incoming != nil {
		version = incoming.Version
		controlID = incoming.ControlID
	}

	raw := fmt.Sprintf("MSH|^~\\&|||||%s||ACK|ACK%s|P|%s\rMSA|%s|%s",
		now.Format("20060102150405"),
		now.Format("20060102150405.000"),
		version,
		ackCode,
		controlID,
	)

	ack, err := Parse([]byte(raw))
	if err != nil {
		// The ACK template above always parses; reaching here is a bug.
		panic(err)
	}
	return ack
}
