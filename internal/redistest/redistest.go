// Package redistest runs a minimal in-process Redis for tests.
//
// It speaks enough RESP2 for go-redis clients to PING, GET, SET and DEL
// string keys. Every other command, including the HELLO and CLIENT SETINFO
// handshake, gets an error reply, which go-redis treats as an older server.
package redistest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Server is a fake Redis listening on a loopback port.
type Server struct {
	ln net.Listener

	mu     sync.Mutex
	closed bool
	data   map[string]string
	ttls   map[string]time.Duration
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// NewServer starts a Server that is stopped when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("redistest: listen: %v", err)
	}
	s := &Server{
		ln:    ln,
		data:  map[string]string{},
		ttls:  map[string]time.Duration{},
		conns: map[net.Conn]struct{}{},
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr is the host:port clients dial.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// URL is a redis:// URL for Addr.
func (s *Server) URL() string { return "redis://" + s.Addr() + "/0" }

// SetRaw stores value under key without a TTL.
func (s *Server) SetRaw(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	delete(s.ttls, key)
}

// Raw returns the stored value of key.
func (s *Server) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// TTL returns the expiry the last SET gave key; zero means none.
func (s *Server) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// Keys lists the stored keys.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Close stops the listener and drops open connections.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
				c.Close()
			}()
			s.handle(c)
		}()
	}
}

func (s *Server) handle(c net.Conn) {
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.exec(w, args)
		// flush only once the pipelined batch is drained
		if r.Buffered() == 0 {
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) exec(w *bufio.Writer, args []string) {
	if len(args) == 0 {
		writeError(w, "empty command")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		w.WriteString("+PONG\r\n")
	case "GET":
		if len(args) != 2 {
			writeError(w, "wrong number of arguments for 'get' command")
			return
		}
		v, ok := s.data[args[1]]
		if !ok {
			w.WriteString("$-1\r\n")
			return
		}
		fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
	case "SET":
		if len(args) < 3 {
			writeError(w, "wrong number of arguments for 'set' command")
			return
		}
		ttl, err := parseExpiry(args[3:])
		if err != nil {
			writeError(w, err.Error())
			return
		}
		s.data[args[1]] = args[2]
		s.ttls[args[1]] = ttl
		w.WriteString("+OK\r\n")
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				delete(s.ttls, k)
				n++
			}
		}
		fmt.Fprintf(w, ":%d\r\n", n)
	default:
		writeError(w, fmt.Sprintf("unknown command '%s'", args[0]))
	}
}

func parseExpiry(opts []string) (time.Duration, error) {
	for i := 0; i < len(opts); i++ {
		unit := time.Duration(0)
		switch strings.ToUpper(opts[i]) {
		case "EX":
			unit = time.Second
		case "PX":
			unit = time.Millisecond
		default:
			continue
		}
		if i+1 >= len(opts) {
			return 0, errors.New("syntax error")
		}
		n, err := strconv.ParseInt(opts[i+1], 10, 64)
		if err != nil {
			return 0, errors.New("value is not an integer or out of range")
		}
		return time.Duration(n) * unit, nil
	}
	return 0, nil
}

func writeError(w *bufio.Writer, msg string) {
	fmt.Fprintf(w, "-ERR %s\r\n", msg)
}

// readCommand reads one RESP array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return strings.Fields(line), nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("redistest: bad array header %q", line)
	}
	args := make([]string, 0, n)
	for range n {
		hdr, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(hdr, "$") {
			return nil, fmt.Errorf("redistest: bad bulk header %q", hdr)
		}
		size, err := strconv.Atoi(hdr[1:])
		if err != nil || size < 0 {
			return nil, fmt.Errorf("redistest: bad bulk length %q", hdr)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
