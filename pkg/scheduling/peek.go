package scheduling

import (
	"os"
	"strings"

	"github.com/ostep-web/wserver/pkg/sockio"
)

// Weight sentinels. Any negative weight excludes an entry from SFF ranking;
// the distinct values identify why a request could not be classified.
const (
	weightStatFailed    int64 = -1
	weightTraversal     int64 = -2
	weightDynamic       int64 = -3
	weightPeekFailed    int64 = -5
	weightNoRequestLine int64 = -6
	weightMalformed     int64 = -7
	weightNotGet        int64 = -8
)

// PeekSize inspects a freshly accepted connection without consuming any
// bytes and returns the size of the static file its GET would serve, or a
// negative sentinel when the request cannot be classified: peek failure,
// missing line terminator, short request line, non-GET method, path
// traversal, dynamic target, or stat failure.
func PeekSize(conn *sockio.Conn) int64 {
	peeked, err := conn.Peek(sockio.MaxBuf - 1)
	if err != nil {
		return weightPeekFailed
	}

	line := string(peeked)
	if idx := strings.Index(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	} else if idx := strings.Index(line, "\n"); idx >= 0 {
		line = line[:idx]
	} else {
		return weightNoRequestLine
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return weightMalformed
	}
	method, uri := fields[0], fields[1]

	if !strings.EqualFold(method, "GET") {
		return weightNotGet
	}
	if strings.Contains(uri, "..") {
		return weightTraversal
	}

	// Dynamic targets are not ranked; they enter the queue unclassified.
	if strings.Contains(uri, "cgi") {
		return weightDynamic
	}

	filename := "." + uri
	if strings.HasSuffix(uri, "/") {
		filename += "index.html"
	}

	info, err := os.Stat(filename)
	if err != nil {
		return weightStatFailed
	}
	return info.Size()
}
