package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/xavierroma/nhttp/app/bufreader"
	"github.com/xavierroma/nhttp/app/config"
	"github.com/xavierroma/nhttp/app/kvmap"
	"github.com/xavierroma/nhttp/app/router"
	"github.com/xavierroma/nhttp/app/segmenttree"
	"github.com/xavierroma/nhttp/app/types"
)

// Server accepts connections one at a time and runs each exchange to
// completion before accepting the next. Routes are registered before Serve
// and never change afterwards.
type Server struct {
	cfg    config.Config
	router router.Router
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func NewServer(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		router: router.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers handler for method on path. The returned error is a
// configuration error and should abort startup.
func (s *Server) Handle(m types.Method, path string, h types.Handler) error {
	return s.router.Register(m, path, h)
}

func (s *Server) OnGet(path string, h types.Handler) error {
	return s.Handle(types.Get, path, h)
}

func (s *Server) OnHead(path string, h types.Handler) error {
	return s.Handle(types.Head, path, h)
}

func (s *Server) OnPost(path string, h types.Handler) error {
	return s.Handle(types.Post, path, h)
}

func (s *Server) OnPut(path string, h types.Handler) error {
	return s.Handle(types.Put, path, h)
}

func (s *Server) OnDelete(path string, h types.Handler) error {
	return s.Handle(types.Delete, path, h)
}

// minBacklog is the shortest listen queue the server asks for.
const minBacklog = 128

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Listen opens the TCP listener on all interfaces with SO_REUSEADDR set and
// a listen queue of at least minBacklog connections.
func (s *Server) Listen() (net.Listener, error) {
	l, err := listenTCP4(s.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return l, nil
}

func (s *Server) ListenAndServe() error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve runs the accept loop on l until l is closed. Accept failures are
// logged and retried after a delay that doubles up to maxAcceptDelay.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", l.Addr().String())
	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = nextAcceptDelay(delay)
			s.logger.Error("accept failed", "err", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		s.handleConnection(conn)
	}
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	return min(2*d, maxAcceptDelay)
}

// Close stops the accept loop. The exchange in flight, if any, completes.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConnection serves one exchange and closes conn. A panicking handler
// costs only its own connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log := s.logger.With("remote", conn.RemoteAddr().String())
	defer func() {
		if p := recover(); p != nil {
			log.Error("exchange panicked, dropping connection", "panic", p)
		}
	}()

	ex := s.dispatch(conn)
	if ex.err != nil {
		log.Warn("exchange failed", "method", ex.req.Method, "target", ex.req.Target, "status", ex.status, "err", ex.err)
		return
	}
	log.Info("exchange", "method", ex.req.Method, "target", ex.req.Target, "status", ex.status, "result", ex.result)
}

// exchange summarizes one dispatch for logging.
type exchange struct {
	req    types.Request
	status int
	result int
	err    error
}

// dispatch runs one request through the stages
// request line -> method -> query split -> path -> route -> headers -> query
// -> handler. A failing stage answers with a bare status line and the rest
// are skipped. The context, and with it the reader and every map, is
// released exactly once on all paths.
func (s *Server) dispatch(rw io.ReadWriter) (ex exchange) {
	br := bufreader.New(rw)
	br.SetMaxEmptyReads(s.cfg.MaxEmptyReads)
	c := types.NewContext(rw, br)
	c.SetMaxBodySize(s.cfg.MaxBodySize)
	defer c.Release()

	fail := func(code int, err error) exchange {
		ex.status = code
		ex.err = err
		if werr := c.WriteStatus(code); werr != nil {
			ex.err = errors.Join(err, fmt.Errorf("writing status: %w", werr))
		}
		return ex
	}

	line, err := br.ReadLine(s.cfg.LineSize - 1)
	if err != nil {
		if len(line) == 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			ex.err = fmt.Errorf("connection closed before request line: %w", err)
			return ex
		}
		return fail(types.StatusRequestTooLarge, fmt.Errorf("reading request line: %w", err))
	}

	ex.req = parseRequestLine(string(line))
	method, ok := types.ParseMethod(string(ex.req.Method))
	if !ok {
		return fail(types.StatusBadRequest, fmt.Errorf("unsupported method %q", ex.req.Method))
	}

	path, query := router.SplitTarget(ex.req.Target)
	ex.req.Path = router.TrimSlashes(path)
	ex.req.Query = query

	match := s.router.Match(method, ex.req.Path)
	switch match.Status {
	case segmenttree.NotFound:
		return fail(types.StatusNotFound, nil)
	case segmenttree.MethodNotAllowed:
		return fail(types.StatusMethodNotAllowed, nil)
	}
	// from here on Release also covers the captured variables
	c.Bind(ex.req, match.Vars, nil, nil)

	headers, err := kvmap.FromHeaders(br, s.cfg.LineSize-1)
	if err != nil {
		return fail(types.StatusBadRequest, fmt.Errorf("parsing headers: %w", err))
	}

	params, err := kvmap.FromURLEncoded(query)
	if err != nil {
		return fail(types.StatusBadRequest, fmt.Errorf("parsing query: %w", err))
	}

	c.Bind(ex.req, match.Vars, params, headers)
	ex.result = match.Handler(c)
	ex.status = c.Status()
	return ex
}

// parseRequestLine splits "METHOD SP TARGET SP VERSION CRLF" on whitespace.
// Missing fields stay empty.
func parseRequestLine(line string) types.Request {
	fields := strings.Fields(line)
	var req types.Request
	if len(fields) > 0 {
		req.Method = types.Method(fields[0])
	}
	if len(fields) > 1 {
		req.Target = fields[1]
	}
	if len(fields) > 2 {
		req.Version = fields[2]
	}
	return req
}
