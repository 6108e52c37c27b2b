package request

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ostep-web/wserver/pkg/sockio"
)

// cgiPrelude is the portion of the response the server emits before handing
// standard output to the CGI child. The child is responsible for the
// remaining headers and the blank separator line.
const cgiPrelude = "HTTP/1.0 200 OK\r\nServer: " + serverName + "\r\n"

// serveDynamic runs a GET-style CGI program: QUERY_STRING in the
// environment, standard output redirected to the connection, no arguments.
// The call returns once the child has exited.
func (h *Handler) serveDynamic(conn *sockio.Conn, filename, cgiArgs string) {
	if _, err := conn.WriteString(cgiPrelude); err != nil {
		h.log.Debugf("Failed to write CGI prelude: %v", err)
		return
	}
	h.tracker.TrackResponse(200)

	stdout, err := conn.File()
	if err != nil {
		h.log.Warnf("Failed to duplicate connection for CGI: %v", err)
		return
	}
	defer stdout.Close()

	cmd := exec.Command(filename)
	cmd.Env = append(os.Environ(), "QUERY_STRING="+cgiArgs)
	cmd.Stdout = stdout
	if err := cmd.Run(); err != nil {
		h.log.Warnf("CGI program %s failed: %v", filename, err)
	}
}

// serveDynamicPost runs a POST-style CGI program. The request body is piped
// to the child's standard input; the write end is closed after the body so
// the child observes end-of-input. CONTENT_LENGTH joins QUERY_STRING in the
// environment.
func (h *Handler) serveDynamicPost(conn *sockio.Conn, filename, cgiArgs string, body []byte) {
	if _, err := conn.WriteString(cgiPrelude); err != nil {
		h.log.Debugf("Failed to write CGI prelude: %v", err)
		return
	}

	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		h.respondError(conn, "Pipe Error", 500, "Internal Server Error", "Failed to create pipe.")
		return
	}
	h.tracker.TrackResponse(200)

	stdout, err := conn.File()
	if err != nil {
		pipeRead.Close()
		pipeWrite.Close()
		h.log.Warnf("Failed to duplicate connection for CGI: %v", err)
		return
	}
	defer stdout.Close()

	cmd := exec.Command(filename)
	cmd.Env = append(os.Environ(),
		"QUERY_STRING="+cgiArgs,
		fmt.Sprintf("CONTENT_LENGTH=%d", len(body)),
	)
	cmd.Stdin = pipeRead
	cmd.Stdout = stdout
	if err := cmd.Start(); err != nil {
		pipeRead.Close()
		pipeWrite.Close()
		h.log.Warnf("Failed to start CGI program %s: %v", filename, err)
		return
	}
	pipeRead.Close()

	if _, err := pipeWrite.Write(body); err != nil {
		h.log.Debugf("Failed to write POST body to CGI stdin: %v", err)
	}
	pipeWrite.Close()

	if err := cmd.Wait(); err != nil {
		h.log.Warnf("CGI program %s failed: %v", filename, err)
	}
}
