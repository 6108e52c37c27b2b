// Package request implements the per-connection HTTP/1.0 request handler:
// parse one request, classify it as static or dynamic, and produce exactly
// one response. Handlers have no knowledge of the scheduling queue; they are
// invoked by workers on connections they exclusively own.
package request

import (
	"os"
	"strconv"
	"strings"

	"github.com/ostep-web/wserver/pkg/internal/utils"
	"github.com/ostep-web/wserver/pkg/logging"
	"github.com/ostep-web/wserver/pkg/metrics"
	"github.com/ostep-web/wserver/pkg/sockio"
)

// serverName is the Server header value sent on every response.
const serverName = "OSTEP WebServer"

// Handler serves a single HTTP/1.0 request per connection. The zero value is
// not usable; use NewHandler.
type Handler struct {
	// log is the associated logger.
	log logging.Logger
	// tracker records response counters. It may be nil.
	tracker *metrics.Tracker
}

// NewHandler creates a request handler.
func NewHandler(log logging.Logger, tracker *metrics.Tracker) *Handler {
	return &Handler{
		log:     log,
		tracker: tracker,
	}
}

// Handle reads one HTTP request from conn and writes one response. The
// caller retains ownership of conn and closes it after Handle returns. I/O
// failures mid-request abandon the connection without a response.
func (h *Handler) Handle(conn *sockio.Conn) {
	line, err := conn.ReadLine(sockio.MaxBuf)
	if err != nil {
		h.log.Debugf("Failed to read request line: %v", err)
		return
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		h.log.Debugf("Malformed request line: %q", utils.SanitizeForLog(line))
		return
	}
	method, uri, version := fields[0], fields[1], fields[2]
	h.log.Infof("Handling request: method=%s uri=%s version=%s",
		utils.SanitizeForLog(method), utils.SanitizeForLog(uri), utils.SanitizeForLog(version))

	if strings.Contains(uri, "..") {
		h.respondError(conn, uri, 403, "Forbidden", "Path traversal attempt detected in URI.")
		return
	}

	isGet := strings.EqualFold(method, "GET")
	isPost := strings.EqualFold(method, "POST")
	if !isGet && !isPost {
		h.respondError(conn, method, 501, "Not Implemented", "server does not implement this method")
		return
	}

	contentLength, err := h.parseHeaders(conn)
	if err != nil {
		h.log.Debugf("Failed to read request headers: %v", err)
		return
	}

	var body []byte
	if isPost {
		if contentLength <= 0 {
			h.respondError(conn, "POST", 411, "Length Required", "POST requests require a Content-Length header")
			return
		}
		body = make([]byte, contentLength)
		if err := conn.ReadFull(body); err != nil {
			h.log.Debugf("Failed to read POST body: %v", err)
			return
		}
	}

	filename, cgiArgs, static := parseURI(uri)

	info, err := os.Stat(filename)
	if err != nil {
		h.respondError(conn, filename, 404, "Not found", "server could not find this file")
		return
	}

	if static {
		if isPost {
			h.respondError(conn, filename, 405, "Method Not Allowed", "POST method is not supported for static content")
			return
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o400 == 0 {
			h.respondError(conn, filename, 403, "Forbidden", "server could not read this file")
			return
		}
		h.serveStatic(conn, filename, info.Size())
		return
	}

	if !info.Mode().IsRegular() || info.Mode().Perm()&0o100 == 0 {
		h.respondError(conn, filename, 403, "Forbidden", "server could not run this CGI program")
		return
	}
	if isPost {
		h.serveDynamicPost(conn, filename, cgiArgs, body)
	} else {
		h.serveDynamic(conn, filename, cgiArgs)
	}
}

// parseHeaders consumes header lines up to the blank separator line and
// returns the Content-Length value, or 0 if the header is absent. Only a
// case-insensitive Content-Length key is accepted; values on other headers
// are ignored.
func (h *Handler) parseHeaders(conn *sockio.Conn) (int, error) {
	contentLength := 0
	for {
		line, err := conn.ReadLine(sockio.MaxBuf)
		if err != nil {
			return 0, err
		}
		if line == "\r\n" || line == "\n" {
			return contentLength, nil
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			contentLength = n
		}
	}
}

// parseURI derives the on-disk filename and the CGI argument string from a
// request URI. URIs without the "cgi" substring are static: the filename is
// the URI relative to the working directory, with index.html appended for
// directory requests. URIs containing "cgi" are dynamic: everything after
// the first '?' becomes the CGI argument string.
func parseURI(uri string) (filename, cgiArgs string, static bool) {
	if !strings.Contains(uri, "cgi") {
		filename = "." + uri
		if strings.HasSuffix(uri, "/") {
			filename += "index.html"
		}
		return filename, "", true
	}
	path, args, _ := strings.Cut(uri, "?")
	return "." + path, args, false
}
