//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
)

var (
	port           int
	dbPath         string
	maxTries       int
	outlierFactor  float64
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PERFGRID_DB_PATH", "perfgrid.sqlite3"), "Path to SQLite database")
	flag.IntVar(&maxTries, "max-tries", 3, "Maximum interpolation attempts per extraction")
	flag.Float64Var(&outlierFactor, "factor", 4, "Flag intervals shorter than mean/factor")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := perfgrid.NewService(
		perfgrid.WithDBPath(dbPath),
		perfgrid.WithMaxTries(maxTries),
		perfgrid.WithOutlierFactor(outlierFactor),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		MaxTries:       maxTries,
		OutlierFactor:  outlierFactor,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
