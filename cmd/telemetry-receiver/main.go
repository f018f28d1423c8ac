package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// A tiny stand-in collector for local development: point the webhook sink
// at it and watch batch telemetry arrive.
func main() {
	addr := flag.String("addr", ":8099", "listen address for telemetry receiver")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", handleEvent)
	mux.HandleFunc("/", handleEvent)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("telemetry receiver listening on %s (POST JSON to /telemetry)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

func handleEvent(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	log.Printf("received telemetry event: path=%s content-type=%s len=%d\n%s",
		r.URL.Path, r.Header.Get("Content-Type"), len(body), string(body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
