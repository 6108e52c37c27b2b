package request

import (
	"fmt"

	"github.com/ostep-web/wserver/pkg/internal/utils"
	"github.com/ostep-web/wserver/pkg/sockio"
)

// errorBody is the HTML template used for every error response.
const errorBody = "<!doctype html>\r\n" +
	"<head>\r\n" +
	"  <title>OSTEP WebServer Error</title>\r\n" +
	"</head>\r\n" +
	"<body>\r\n" +
	"  <h2>%d: %s</h2>\r\n" +
	"  <p>%s: %s</p>\r\n" +
	"</body>\r\n" +
	"</html>\r\n"

// respondError writes a complete HTTP error response with the standard HTML
// body. Write failures abandon the connection.
func (h *Handler) respondError(conn *sockio.Conn, cause string, status int, shortMsg, longMsg string) {
	h.log.Infof("Responding %d %s: %s", status, shortMsg, utils.SanitizeForLog(cause))
	h.tracker.TrackResponse(status)

	body := fmt.Sprintf(errorBody, status, shortMsg, longMsg, cause)
	head := fmt.Sprintf("HTTP/1.0 %d %s\r\nContent-Type: text/html\r\nContent-Length: %d\r\n\r\n",
		status, shortMsg, len(body))
	if _, err := conn.WriteString(head + body); err != nil {
		h.log.Debugf("Failed to write error response: %v", err)
	}
}
