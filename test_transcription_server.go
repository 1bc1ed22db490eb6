package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Standalone fake whisper endpoint for local development. Run with
// `go run test_transcription_server.go` and point the daemon's
// transcription endpoint at http://localhost:9000/transcribe.

type transcriptionResponse struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	ProcessedAt time.Time `json:"processed_at"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	language := r.FormValue("language")
	beamSize := r.FormValue("beam_size")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	size, _ := io.Copy(io.Discard, file)
	log.Printf("Received %s (%d bytes), language=%q beam_size=%s", header.Filename, size, language, beamSize)

	resp := transcriptionResponse{
		Text:        fmt.Sprintf("fake transcription of %s (%d bytes)", header.Filename, size),
		Language:    language,
		ProcessedAt: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)

	log.Println("Fake transcription server listening on :9000")
	if err := http.ListenAndServe(":9000", nil); err != nil {
		log.Fatal(err)
	}
}
