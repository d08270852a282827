// Package transport implements the Peer Transport: the network side of
// delivering a built bundle archive (§4.C7) from one peer to another. It is
// deliberately thin — one binary message in, one acknowledgement out — per
// §1's framing of the wire transport as a replaceable external collaborator
// the core protocol doesn't need to reinvent. Grounded on the teacher's
// session/resumable-upload client (drive_session.go) for the "dial, send,
// wait for ack" client shape, using github.com/coder/websocket as the
// concrete socket implementation in place of the teacher's HTTP client.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// bundlePath is the HTTP path a peer's listener upgrades to a websocket on.
const bundlePath = "/bundle"

// digestLen is the length in bytes of a lowercase-hex SHA-1 digest, used as
// a fixed-width header in front of the archive payload on the wire.
const digestLen = 40

// ackOK and ackError are the single-frame text acknowledgements a server
// sends back after attempting to accept a pushed bundle.
const (
	ackOK    = "ok"
	ackError = "error"
)

// maxBundleBytes bounds a single accepted message, guarding a listener
// against an unbounded allocation from a misbehaving or hostile peer.
const maxBundleBytes = 1 << 30 // 1 GiB

// Acceptor is the subset of *bundle.Acceptor the transport layer needs.
// Declared here (rather than imported from package bundle) so transport has
// no compile-time dependency on the bundle-merge implementation.
type Acceptor interface {
	Accept(digest string, data []byte) error
}

// Server accepts incoming bundle pushes over websocket and hands each one
// to an Acceptor.
type Server struct {
	acceptor Acceptor
	logger   *slog.Logger
}

// NewServer constructs a Server delivering accepted bundles to acceptor.
func NewServer(acceptor Acceptor, logger *slog.Logger) *Server {
	return &Server{acceptor: acceptor, logger: logger}
}

// Handler returns an http.Handler serving the bundle-push endpoint at
// bundlePath, suitable for mounting on an *http.ServeMux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(bundlePath, s.handleBundle)

	return mux
}

// ListenAndServe blocks serving bundle pushes on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("transport: serving: %w", err)
		}

		return nil
	}
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("bundle push: accepting websocket failed", slog.String("error", err.Error()))
		}

		return
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort cleanup; Close below is the graceful path

	ctx := r.Context()

	digest, payload, err := readFrame(ctx, conn)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("bundle push: reading frame failed", slog.String("error", err.Error()))
		}

		_ = conn.Write(ctx, websocket.MessageText, []byte(ackError))

		return
	}

	if err := s.acceptor.Accept(digest, payload); err != nil {
		if s.logger != nil {
			s.logger.Error("bundle push: accept failed", slog.String("digest", digest), slog.String("error", err.Error()))
		}

		_ = conn.Write(ctx, websocket.MessageText, []byte(ackError))

		return
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(ackOK)); err != nil {
		return
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

// Send dials addr, pushes one bundle archive tagged with digest, and waits
// for the peer's acknowledgement.
func Send(ctx context.Context, addr, digest string, payload []byte) error {
	if len(digest) != digestLen {
		return fmt.Errorf("transport: digest %q is not %d hex characters", digest, digestLen)
	}

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+bundlePath, nil)
	if err != nil {
		return fmt.Errorf("transport: dialing %s: %w", addr, err)
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort cleanup; Close below is the graceful path

	conn.SetReadLimit(maxBundleBytes)

	frame := make([]byte, 0, digestLen+len(payload))
	frame = append(frame, digest...)
	frame = append(frame, payload...)

	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("transport: sending bundle %s: %w", digest, err)
	}

	typ, ack, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("transport: reading acknowledgement for bundle %s: %w", digest, err)
	}

	if typ != websocket.MessageText || string(ack) != ackOK {
		return fmt.Errorf("transport: peer rejected bundle %s: %s", digest, ack)
	}

	conn.Close(websocket.StatusNormalClosure, "")

	return nil
}

// readFrame reads exactly one binary message and splits it into its digest
// header and archive payload.
func readFrame(ctx context.Context, conn *websocket.Conn) (digest string, payload []byte, err error) {
	conn.SetReadLimit(maxBundleBytes)

	typ, data, err := conn.Read(ctx)
	if err != nil {
		if err == io.EOF {
			return "", nil, fmt.Errorf("transport: connection closed before a frame arrived")
		}

		return "", nil, fmt.Errorf("transport: reading frame: %w", err)
	}

	if typ != websocket.MessageBinary {
		return "", nil, fmt.Errorf("transport: expected a binary frame, got %v", typ)
	}

	if len(data) < digestLen {
		return "", nil, fmt.Errorf("transport: frame shorter than digest header (%d bytes)", len(data))
	}

	return string(data[:digestLen]), data[digestLen:], nil
}
