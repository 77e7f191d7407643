package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// rangecat fetches a byte range of an object from the gateway and writes
// the plaintext to stdout.
func main() {
	var (
		gatewayURL = flag.String("url", "http://localhost:8080", "Gateway base URL")
		key        = flag.String("key", "", "Object key (required)")
		byteRange  = flag.String("range", "", "Byte range, e.g. 5-14, 100-, or -512 (default: whole object)")
		timeout    = flag.Duration("timeout", 60*time.Second, "Request timeout")
	)
	flag.Parse()

	if *key == "" {
		fmt.Fprintln(os.Stderr, "rangecat: -key is required")
		flag.Usage()
		os.Exit(2)
	}

	url := strings.TrimRight(*gatewayURL, "/") + "/objects/" + *key
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rangecat: %v\n", err)
		os.Exit(1)
	}
	if *byteRange != "" {
		req.Header.Set("Range", "bytes="+*byteRange)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rangecat: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fmt.Fprintf(os.Stderr, "rangecat: %s: %s\n", resp.Status, strings.TrimSpace(string(body)))
		os.Exit(1)
	}

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "rangecat: %v\n", err)
		os.Exit(1)
	}
}
