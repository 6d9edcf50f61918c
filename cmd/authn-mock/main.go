package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/Clark-Hu/store-ratings/internal/logger"
)

type accountEntry struct {
	Password string `json:"password"`
	Role     string `json:"role"`
}

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-accounts.json", "path to mock accounts file (email -> {password, role})")
		apiKey  = flag.String("api-key", "", "required X-API-Key value; empty accepts any")
		logMode = flag.String("log", "dev", "logger mode (dev or prod)")
	)
	flag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatal("read mock data", "error", err)
	}

	var raw map[string]accountEntry
	if err := json.Unmarshal(file, &raw); err != nil {
		log.Fatal("parse mock data", "error", err)
	}
	accounts := make(map[string]accountEntry, len(raw))
	for email, entry := range raw {
		accounts[strings.ToLower(strings.TrimSpace(email))] = entry
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		entry, ok := accounts[email]
		if !ok || entry.Password != req.Password {
			log.Debug("rejected credentials", "email", email)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(verifyResponse{Valid: true, Email: req.Email, Role: entry.Role}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	log.Info("mock authn listening", "addr", addr, "accounts", len(accounts))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("server error", "error", err)
	}
}
