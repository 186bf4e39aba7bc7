package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	n := flag.Int("n", 5000, "requests")
	conc := flag.Int("c", 32, "concurrency")
	valSize := flag.Int("val", 128, "value size bytes")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan int, *conc)
	var failed atomic.Int64

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			defer func() { <-ch }()

			key := fmt.Sprintf("k%d", i)
			value := strings.Repeat(string(rune('a'+rand.Intn(26))), *valSize)
			body, _ := json.Marshal(map[string]string{"key": key, "value": value})

			resp, err := client.Post(*addr+"/keys", "application/json", bytes.NewReader(body))
			if !drain(resp, err, http.StatusCreated) {
				failed.Add(1)
			}
			resp, err = client.Get(*addr + "/keys/" + key)
			if !drain(resp, err, http.StatusOK) {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	fmt.Printf("Completed %d ops in %s (%.2f ops/s), %d failed\n", *n*2, dur, float64(*n*2)/dur.Seconds(), failed.Load())
}

// drain discards the response body and reports whether the request got the
// wanted status.
func drain(resp *http.Response, err error, want int) bool {
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == want
}
