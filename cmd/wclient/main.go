// wclient is a single-shot HTTP client: it connects to a server, requests
// one path, prints the response headers and body, and exits. It exists to
// poke at wserver from the command line without curl's protocol smarts
// getting in the way.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "wclient <host> <port> <path>",
	Short:        "Fetch one path from a wserver instance",
	Args:         cobra.ExactArgs(3),
	RunE:         runFetch,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFetch(_ *cobra.Command, args []string) error {
	host, path := args[0], args[2]
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[1])
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("unable to connect: %w", err)
	}
	defer conn.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.1\nhost: %s\n\r\n", path, hostname); err != nil {
		return fmt.Errorf("unable to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("unable to read response: %w", err)
		}
		if line == "\r\n" {
			break
		}
		fmt.Printf("Header: %s", line)
	}

	if _, err := io.Copy(os.Stdout, reader); err != nil {
		return fmt.Errorf("unable to read response body: %w", err)
	}
	return nil
}
