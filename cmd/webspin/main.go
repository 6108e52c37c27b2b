// webspin is a sample CGI program for exercising wserver's dynamic path.
// It spins for the number of seconds given in QUERY_STRING, consumes a
// POST payload announced via CONTENT_LENGTH on standard input (when shorter
// than maxPostBytes), appends the payload to log_post.txt, and emits the
// rest of the HTTP response (headers, blank line, HTML body) on standard
// output.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// maxPostBytes bounds the POST data the program will consume; payloads of
// this size or larger are not read at all.
const maxPostBytes = 8192

func main() {
	spinFor := 0
	if qs := os.Getenv("QUERY_STRING"); qs != "" {
		if n, err := strconv.Atoi(qs); err == nil {
			spinFor = n
		}
	}

	start := time.Now()
	for time.Since(start) < time.Duration(spinFor)*time.Second {
		time.Sleep(time.Second)
	}
	elapsed := time.Since(start)

	postData := "No POST data received."
	contentLength := 0
	if v := os.Getenv("CONTENT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			contentLength = n
		}
	}
	if contentLength > 0 && contentLength < maxPostBytes {
		buf := make([]byte, contentLength)
		if _, err := io.ReadFull(os.Stdin, buf); err == nil {
			postData = string(buf)
			logPost(postData)
		}
	}

	body := fmt.Sprintf("<h2>Request processed!</h2>\r\n"+
		"<p>Spun for %.2f seconds.</p>\r\n"+
		"<hr><h3>POST data received:</h3><pre>%s</pre>\r\n",
		elapsed.Seconds(), postData)

	fmt.Printf("Content-Length: %d\r\n", len(body))
	fmt.Printf("Content-Type: text/html\r\n\r\n")
	fmt.Print(body)
}

// logPost appends received POST data to log_post.txt in the working
// directory (the server's document root).
func logPost(data string) {
	f, err := os.OpenFile("log_post.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "Date: %s\nData: %s\n--------------------------------\n",
		time.Now().Format(time.ANSIC), data)
}
