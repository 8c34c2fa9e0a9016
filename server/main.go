package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"example.com/desk_bridge/pkg/codec"
	"example.com/desk_bridge/pkg/compress"
	"example.com/desk_bridge/pkg/input"
	"example.com/desk_bridge/pkg/session"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	quality := flag.Int("quality", 50, "image codec quality, 0-100")
	compression := flag.Int("compression", 50, "second-stage compression percent, 0-100")
	format := flag.String("format", "jpeg", "image format: jpeg, webp or avif")
	algorithm := flag.String("algorithm", "zstd", "second-stage compressor: zstd, lz4 or none")
	resolution := flag.String("resolution", "", "streaming resolution as WIDTHxHEIGHT (default: native)")
	activityThreshold := flag.Int("activity-threshold", 0, "per-pixel activity gate, 0 disables gating")
	secondCompress := flag.Bool("second-compress", true, "enable the second compression stage")
	flag.Parse()

	cfg := session.DefaultConfig()
	cfg.Quality = *quality
	cfg.Compression = *compression
	cfg.Format = codec.Format(*format)
	cfg.Algorithm = compress.Algorithm(*algorithm)
	cfg.ActivityThreshold = *activityThreshold
	cfg.SecondCompress = *secondCompress

	if *resolution != "" {
		res, err := parseResolution(*resolution)
		if err != nil {
			log.Fatalf("Invalid -resolution: %v", err)
		}
		cfg.Resolution = &res
	}

	manager, err := session.NewManager(cfg, newPatternCapturer(1280, 720), input.LogInjector{})
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	http.HandleFunc("/stream", handleStream(manager))
	http.HandleFunc("/webrtc", handleWebRTCOffer(manager))

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	log.Printf("Desk bridge server starting on %s", *addr)
	log.Printf("WebSocket endpoint: ws://localhost%s/stream", *addr)

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal(err)
	}
}

// parseResolution parses "WIDTHxHEIGHT".
func parseResolution(s string) (session.Resolution, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return session.Resolution{}, fmt.Errorf("want WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return session.Resolution{}, fmt.Errorf("bad width %q: %w", parts[0], err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return session.Resolution{}, fmt.Errorf("bad height %q: %w", parts[1], err)
	}
	if width <= 0 || height <= 0 {
		return session.Resolution{}, fmt.Errorf("dimensions must be positive, got %dx%d", width, height)
	}
	return session.Resolution{Width: width, Height: height}, nil
}
