package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Small health probe for scripts and container healthchecks: exits 0 when the
// service answers /health, 1 otherwise.

func main() {
	fmt.Println("beats-by-redis Health Check Utility")
	fmt.Println("-----------------------------------")

	url := "http://localhost:8080/health"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	healthy, err := checkServiceHealth(url)
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	if healthy {
		fmt.Println("Service is healthy!")
	} else {
		fmt.Println("Service is NOT healthy!")
		os.Exit(1)
	}
}

func checkServiceHealth(url string) (bool, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
