package main

import (
	"log"
)

func main() {
	log.Println("[Main] Starting FIRM capacity expansion")
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}
