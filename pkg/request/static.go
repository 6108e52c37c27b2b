package request

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ostep-web/wserver/pkg/sockio"
)

// filetypes maps filename suffixes to content types. Matching is by
// substring containment, first match wins, so the order is significant.
var filetypes = []struct {
	substr      string
	contentType string
}{
	{".html", "text/html"},
	{".gif", "image/gif"},
	{".jpg", "image/jpeg"},
	{".pdf", "application/pdf"},
	{".css", "text/css"},
	{".js", "application/javascript"},
}

// contentType determines the content type for a filename.
func contentType(filename string) string {
	for _, ft := range filetypes {
		if strings.Contains(filename, ft.substr) {
			return ft.contentType
		}
	}
	return "text/plain"
}

// serveStatic sends a 200 response with the file's bytes. The file is
// delivered through a private read-only mapping so the payload is written
// straight from the page cache; the mapping is released before returning.
func (h *Handler) serveStatic(conn *sockio.Conn, filename string, size int64) {
	src, err := os.Open(filename)
	if err != nil {
		h.respondError(conn, filename, 403, "Forbidden", "server could not read this file")
		return
	}
	defer src.Close()

	head := fmt.Sprintf("HTTP/1.0 200 OK\r\nServer: %s\r\nContent-Length: %d\r\nContent-Type: %s\r\n\r\n",
		serverName, size, contentType(filename))
	if _, err := conn.WriteString(head); err != nil {
		h.log.Debugf("Failed to write response headers: %v", err)
		return
	}

	h.tracker.TrackResponse(200)

	// A zero-length mapping is invalid; empty files are headers only.
	if size == 0 {
		return
	}

	data, err := unix.Mmap(int(src.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		h.log.Warnf("Failed to map %s: %v", filename, err)
		return
	}
	defer func() {
		if err := unix.Munmap(data); err != nil {
			h.log.Warnf("Failed to unmap %s: %v", filename, err)
		}
	}()

	n, err := conn.Write(data)
	if err != nil {
		h.log.Debugf("Failed to write response body: %v", err)
	}
	h.tracker.TrackStaticBytes(int64(n))
}
