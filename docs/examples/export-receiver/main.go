// Eventpulse Export Receiver Example
//
// This is a minimal example of how to receive and verify Eventpulse
// report exports.
//
// Usage:
//   export EVENTPULSE_EXPORT_SECRET="your_secret_here"
//   go run main.go
//
// Then configure EXPORT_TARGET_URL on the Eventpulse server to point
// at https://your-server/exports (exports are delivered over HTTPS).

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Report mirrors the exported aggregate report shape.
type Report struct {
	Summary        Summary `json:"summary"`
	Surfaces       []any   `json:"surfaces"`
	Sponsors       []any   `json:"sponsors"`
	Events         []any   `json:"events"`
	LastUpdatedISO string  `json:"lastUpdatedISO"`
}

type Summary struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	Signups     int64 `json:"signups"`
}

func main() {
	secret := os.Getenv("EVENTPULSE_EXPORT_SECRET")
	if secret == "" {
		log.Fatal("EVENTPULSE_EXPORT_SECRET environment variable is required")
	}

	http.HandleFunc("/exports", exportHandler(secret))
	http.HandleFunc("/health", healthHandler)

	log.Println("Starting export receiver on :9000")
	log.Println("Endpoint: http://localhost:9000/exports")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func exportHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Read body
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("Error reading body: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		signature := r.Header.Get("X-Eventpulse-Signature")
		timestamp := r.Header.Get("X-Eventpulse-Timestamp")
		exportID := r.Header.Get("X-Eventpulse-Export-Id")
		if signature == "" || timestamp == "" {
			log.Println("Missing signature headers")
			http.Error(w, "Missing signature", http.StatusUnauthorized)
			return
		}

		// Verify signature
		if !verifySignature(signature, timestamp, body, secret) {
			log.Println("Invalid signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		// Parse report
		var report Report
		if err := json.Unmarshal(body, &report); err != nil {
			log.Printf("Error parsing JSON: %v", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		log.Printf("✓ Received export %s", exportID)
		log.Printf("  Impressions: %d", report.Summary.Impressions)
		log.Printf("  Clicks:      %d", report.Summary.Clicks)
		log.Printf("  Signups:     %d", report.Summary.Signups)
		log.Printf("  As of:       %s", report.LastUpdatedISO)

		// Respond with 200 OK
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	}
}

// verifySignature verifies the HMAC-SHA256 signature from Eventpulse.
//
// Signed payload: {timestamp}.{body}
func verifySignature(signature, timestamp string, body []byte, secret string) bool {
	// Check timestamp (±5 min tolerance)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > 300 {
		log.Println("Signature timestamp too old or in future")
		return false
	}

	// Compute expected signature
	signedPayload := fmt.Sprintf("%s.%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
