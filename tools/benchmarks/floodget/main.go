// floodget drives a running wserver instance with a stream of HTTP/1.0
// GETs and reports status-code counts and throughput. It is the harness
// for the server's admission-stress property: every accepted request must
// eventually produce a response, whatever the worker and queue sizing.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var (
	requests    uint
	concurrency uint
)

var rootCmd = &cobra.Command{
	Use:   "floodget <host:port> <path>",
	Short: "Flood a wserver instance with HTTP/1.0 GET requests",
	Long: `floodget opens one connection per request (wserver speaks HTTP/1.0 and
closes after every response), reads each response fully, and tallies the
status lines. A healthy server answers every request with a 200.`,
	Args:         cobra.ExactArgs(2),
	RunE:         runFlood,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().UintVar(&requests, "requests", 1000, "total number of requests to send")
	rootCmd.Flags().UintVar(&concurrency, "concurrency", 8, "number of concurrent client goroutines")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fetch performs one complete request/response round trip and returns the
// status line and the number of body-and-header bytes read.
func fetch(addr, path string) (string, int64, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", 0, err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.0\r\n\r\n", path); err != nil {
		return "", 0, err
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return "", 0, err
	}

	var total int64 = int64(len(statusLine))
	buf := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buf)
		total += int64(n)
		if err != nil {
			break
		}
	}
	return strings.TrimSpace(statusLine), total, nil
}

func runFlood(_ *cobra.Command, args []string) error {
	addr, path := args[0], args[1]
	if concurrency == 0 {
		concurrency = 1
	}

	fmt.Printf("Flooding %s with %d GETs for %s (%d concurrent)\n\n", addr, requests, path, concurrency)

	var (
		lock       sync.Mutex
		statuses   = make(map[string]uint)
		failures   uint
		totalBytes int64
	)

	work := make(chan struct{})
	var wg sync.WaitGroup
	start := time.Now()
	for i := uint(0); i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				status, n, err := fetch(addr, path)
				lock.Lock()
				if err != nil {
					failures++
				} else {
					statuses[status]++
					totalBytes += n
				}
				lock.Unlock()
			}
		}()
	}
	for i := uint(0); i < requests; i++ {
		work <- struct{}{}
	}
	close(work)
	wg.Wait()
	elapsed := time.Since(start)

	names := make([]string, 0, len(statuses))
	for status := range statuses {
		names = append(names, status)
	}
	sort.Strings(names)
	for _, status := range names {
		fmt.Printf("%8d  %s\n", statuses[status], status)
	}
	if failures > 0 {
		fmt.Printf("%8d  transport failures\n", failures)
	}

	fmt.Printf("\n%d requests in %v (%.1f req/s, %s received, %s/s)\n",
		requests, elapsed.Round(time.Millisecond),
		float64(requests)/elapsed.Seconds(),
		units.BytesSize(float64(totalBytes)),
		units.BytesSize(float64(totalBytes)/elapsed.Seconds()))

	if failures > 0 {
		return fmt.Errorf("%d of %d requests failed", failures, requests)
	}
	return nil
}
