package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yoanbernabeu/indexd/daemon"
)

// connDeadline bounds how long a stuck client can hold a handler
// goroutine. Clients are local and trusted, but a wedged one must not leak
// goroutines forever.
const connDeadline = 30 * time.Second

// Server accepts connections on a unix socket and serves one request per
// connection. A shutdown request stops the accept loop; in-flight handlers
// always run to completion.
type Server struct {
	state      *daemon.SharedState
	socketPath string

	listener net.Listener
	wg       sync.WaitGroup

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func NewServer(state *daemon.SharedState, socketPath string) *Server {
	return &Server{
		state:      state,
		socketPath: socketPath,
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested is closed when a client asks the daemon to stop.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// Listen binds the socket, replacing a stale socket file from a previous
// run. The socket is private to the owning user.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	s.listener = listener
	return nil
}

// Serve runs the accept loop until ctx is cancelled or shutdown is
// requested, then waits for in-flight handlers.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownCh:
		}
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			case <-s.shutdownCh:
			default:
				if !errors.Is(err, net.ErrClosed) {
					log.Printf("Accept error: %v", err)
				}
			}
			break
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return nil
}

func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// handleConn reads one request line, dispatches it, writes one response,
// and closes. A malformed line yields one error response; the server keeps
// serving other connections.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connDeadline))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}

	req, err := ParseRequest(line)
	if err != nil {
		s.writeResponse(conn, errorResponse("%v", err))
		return
	}

	// Every valid request counts as client activity for the throttler.
	s.state.Throttler.RecordClientActivity()

	s.writeResponse(conn, s.dispatch(ctx, req))
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// dispatch is the single exhaustive switch over the request set.
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Type {
	case RequestSearch:
		return s.handleSearch(ctx, req)
	case RequestStatus:
		return s.handleStatus(ctx)
	case RequestWatch:
		return s.handleWatch(req)
	case RequestUnwatch:
		return s.handleUnwatch(req)
	case RequestForceIndex:
		return s.handleForceIndex(ctx, req)
	case RequestDetectRoot:
		return s.handleDetectRoot(req)
	case RequestDiscoverProjects:
		return s.handleDiscoverProjects()
	case RequestListProjects:
		return s.handleListProjects()
	case RequestShutdown:
		s.requestShutdown()
		return okResponse()
	default:
		// ParseRequest already rejected unknown types.
		return errorResponse("unknown request type %q", req.Type)
	}
}
