// Command targetserver runs a small HTTP service to point loadfire at during
// local experiments. Every route answers with JSON.
//
//	/users/{id}     echoes the id
//	/echo           echoes method, headers and body
//	/delay?ms=N     sleeps N milliseconds before answering
//	/status?code=N  answers with status N
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxDelay = 30 * time.Second

func main() {
	port := flag.Int("port", 8080, "Listening port")
	flag.Parse()

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("target server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newMux()))
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", handleUser)
	mux.HandleFunc("/echo", handleEcho)
	mux.HandleFunc("/delay", handleDelay)
	mux.HandleFunc("/status", handleStatus)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true, "path": r.URL.Path})
	})
	return mux
}

func handleUser(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if id == "" {
		respondJSON(w, http.StatusNotFound, map[string]any{"error": "missing user id"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "name": "user-" + id})
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"headers": headers,
		"body":    string(body),
	})
}

func handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
	if err != nil || ms < 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "ms must be a non-negative integer"})
		return
	}
	delay := time.Duration(ms) * time.Millisecond
	if delay > maxDelay {
		delay = maxDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		respondJSON(w, http.StatusOK, map[string]any{"delayed_ms": delay.Milliseconds()})
	case <-r.Context().Done():
	}
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.URL.Query().Get("code"))
	if err != nil || code < 100 || code > 599 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "code must be between 100 and 599"})
		return
	}
	respondJSON(w, code, map[string]any{"status": code})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
