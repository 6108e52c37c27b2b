package scheduling

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ostep-web/wserver/pkg/metrics"
	"github.com/ostep-web/wserver/pkg/request"
	"github.com/ostep-web/wserver/pkg/sockio"
)

// createTestLogger creates a logger for testing.
func createTestLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// recordingHandler records the first request line of every connection it
// serves. Lines containing "slow" additionally hold the worker for delay,
// which lets tests fill the queue behind a busy worker.
type recordingHandler struct {
	delay time.Duration
	lock  sync.Mutex
	lines []string
}

func (h *recordingHandler) Handle(conn *sockio.Conn) {
	line, err := conn.ReadLine(sockio.MaxBuf)
	if err != nil {
		return
	}
	h.lock.Lock()
	h.lines = append(h.lines, strings.TrimSpace(line))
	h.lock.Unlock()
	if strings.Contains(line, "slow") {
		time.Sleep(h.delay)
	}
	_, _ = conn.WriteString("HTTP/1.0 200 OK\r\n\r\n")
}

func (h *recordingHandler) recorded() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]string(nil), h.lines...)
}

// startServer runs a server until the test ends and returns its address.
// Test cleanup cancels the server and waits for it to shut down.
func startServer(t *testing.T, handler Handler, workers, slots int, discipline Discipline) net.Addr {
	t.Helper()

	listener, err := sockio.Listen(0)
	require.NoError(t, err)

	server := NewServer(createTestLogger(), listener, handler, nil, workers, slots, discipline)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return server.Addr()
}

// get performs one HTTP/1.0 round trip and returns the raw response.
func get(t *testing.T, addr net.Addr, path string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = fmt.Fprintf(conn, "GET %s HTTP/1.0\r\n\r\n", path)
	require.NoError(t, err)
	response, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(response)
}

func TestServerStaticRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("HELLO\n"), 0o644))
	chdirT(t, dir)

	handler := request.NewHandler(createTestLogger(), nil)
	addr := startServer(t, handler, 2, 4, FIFO)

	response := get(t, addr, "/index.html")
	require.Equal(t,
		"HTTP/1.0 200 OK\r\nServer: OSTEP WebServer\r\nContent-Length: 6\r\nContent-Type: text/html\r\n\r\nHELLO\n",
		response)
}

func TestServerFIFODispatchOrder(t *testing.T) {
	chdirT(t, t.TempDir())

	handler := &recordingHandler{}
	addr := startServer(t, handler, 1, 4, FIFO)

	const requests = 8
	for i := 0; i < requests; i++ {
		response := get(t, addr, fmt.Sprintf("/file-%02d", i))
		require.Contains(t, response, "200 OK")
	}

	lines := handler.recorded()
	require.Len(t, lines, requests)
	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("GET /file-%02d HTTP/1.0", i), line)
	}
}

func TestServerSFFPrefersSmallResidents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow.html"), []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a100.html"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b10.html"), make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c1000.html"), make([]byte, 1000), 0o644))
	chdirT(t, dir)

	handler := &recordingHandler{delay: 500 * time.Millisecond}
	addr := startServer(t, handler, 1, 4, SFF)

	var wg sync.WaitGroup
	send := func(path string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get(t, addr, path)
		}()
	}

	// Pin the single worker, then let three classifiable requests pile up
	// behind it in submission order.
	send("/slow.html")
	time.Sleep(100 * time.Millisecond)
	send("/a100.html")
	time.Sleep(50 * time.Millisecond)
	send("/b10.html")
	time.Sleep(50 * time.Millisecond)
	send("/c1000.html")
	wg.Wait()

	lines := handler.recorded()
	require.Len(t, lines, 4)
	require.Equal(t, "GET /slow.html HTTP/1.0", lines[0])
	require.Equal(t, []string{
		"GET /b10.html HTTP/1.0",
		"GET /a100.html HTTP/1.0",
		"GET /c1000.html HTTP/1.0",
	}, lines[1:])
}

func TestServerTracksMetrics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("HELLO\n"), 0o644))
	chdirT(t, dir)

	tracker := metrics.NewTracker(createTestLogger())
	handler := request.NewHandler(createTestLogger(), tracker)

	listener, err := sockio.Listen(0)
	require.NoError(t, err)
	server := NewServer(createTestLogger(), listener, handler, tracker, 2, 4, FIFO)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for i := 0; i < 3; i++ {
		get(t, server.Addr(), "/index.html")
	}
	get(t, server.Addr(), "/missing")

	families := tracker.Gather()
	byName := make(map[string]float64)
	for _, family := range families {
		if len(family.Metric) == 1 && family.Metric[0].Counter != nil && len(family.Metric[0].Label) == 0 {
			byName[family.GetName()] = family.Metric[0].Counter.GetValue()
		}
	}
	require.Equal(t, float64(4), byName["wserver_connections_accepted_total"])
	require.Equal(t, float64(18), byName["wserver_static_bytes_served_total"])
}

func TestServerManySequentialRequests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.html"), []byte("s"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "large.html"), make([]byte, 32*1024), 0o644))
	chdirT(t, dir)

	handler := request.NewHandler(createTestLogger(), nil)
	addr := startServer(t, handler, 8, 16, FIFO)

	const requests = 300
	succeeded := 0
	for i := 0; i < requests; i++ {
		path := "/small.html"
		if i%3 == 0 {
			path = "/large.html"
		}
		if strings.HasPrefix(get(t, addr, path), "HTTP/1.0 200 OK\r\n") {
			succeeded++
		}
	}
	require.Equal(t, requests, succeeded)
}
