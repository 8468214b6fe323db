package main

import (
	"log"

	"github.com/patric-chuzhbe/qrvault/internal/app"
	"github.com/patric-chuzhbe/qrvault/internal/logger"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatalf("application init error: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		logger.Log.Fatalln("application run error:", err)
	}
}
