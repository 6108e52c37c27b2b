package sockio

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// connPair returns the two ends of a loopback TCP connection.
func connPair(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	listener, err := Listen(0)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	type accepted struct {
		conn net.Conn
		err  error
	}
	acceptedCh := make(chan accepted, 1)
	go func() {
		conn, err := listener.Accept()
		acceptedCh <- accepted{conn, err}
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	a := <-acceptedCh
	require.NoError(t, a.err)
	t.Cleanup(func() { a.conn.Close() })

	return NewConn(a.conn), client
}

func TestReadLine(t *testing.T) {
	server, client := connPair(t)

	_, err := client.Write([]byte("GET /index.html HTTP/1.0\r\nHost: x\r\n"))
	require.NoError(t, err)

	line, err := server.ReadLine(MaxBuf)
	require.NoError(t, err)
	require.Equal(t, "GET /index.html HTTP/1.0\r\n", line)

	line, err = server.ReadLine(MaxBuf)
	require.NoError(t, err)
	require.Equal(t, "Host: x\r\n", line)
}

func TestReadLineEOFNoData(t *testing.T) {
	server, client := connPair(t)

	require.NoError(t, client.Close())

	_, err := server.ReadLine(MaxBuf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadLineEOFPartialLine(t *testing.T) {
	server, client := connPair(t)

	_, err := client.Write([]byte("no terminator"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	// A partial line before EOF is still data, not EOF.
	line, err := server.ReadLine(MaxBuf)
	require.NoError(t, err)
	require.Equal(t, "no terminator", line)

	_, err = server.ReadLine(MaxBuf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadLineBounded(t *testing.T) {
	server, client := connPair(t)

	_, err := client.Write([]byte("abcdefgh\n"))
	require.NoError(t, err)

	line, err := server.ReadLine(5)
	require.NoError(t, err)
	require.Equal(t, "abcd", line)

	// The remainder stays readable.
	line, err = server.ReadLine(MaxBuf)
	require.NoError(t, err)
	require.Equal(t, "efgh\n", line)
}

func TestPeekDoesNotConsume(t *testing.T) {
	server, client := connPair(t)

	_, err := client.Write([]byte("GET / HTTP/1.0\r\n\r\n"))
	require.NoError(t, err)

	peeked, err := server.Peek(MaxBuf - 1)
	require.NoError(t, err)
	require.True(t, len(peeked) > 0)
	require.Equal(t, "GET / HTTP/1.0\r\n", string(peeked[:16]))

	// The same bytes are still readable afterwards.
	line, err := server.ReadLine(MaxBuf)
	require.NoError(t, err)
	require.Equal(t, "GET / HTTP/1.0\r\n", line)
}

func TestPeekEOF(t *testing.T) {
	server, client := connPair(t)

	require.NoError(t, client.Close())

	_, err := server.Peek(MaxBuf - 1)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFull(t *testing.T) {
	server, client := connPair(t)

	_, err := client.Write([]byte("header\r\nbodybody"))
	require.NoError(t, err)

	_, err = server.ReadLine(MaxBuf)
	require.NoError(t, err)

	body := make([]byte, 8)
	require.NoError(t, server.ReadFull(body))
	require.Equal(t, "bodybody", string(body))
}

func TestFileDuplicatesDescriptor(t *testing.T) {
	server, client := connPair(t)

	f, err := server.File()
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("via file\n")
	require.NoError(t, err)

	buf := make([]byte, 9)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "via file\n", string(buf))
}
