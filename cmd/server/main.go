package main

import (
	"log"

	_ "github.com/Joyuchen/flow-state-board/docs"
	"github.com/Joyuchen/flow-state-board/internal/config"
	"github.com/Joyuchen/flow-state-board/internal/server"
)

// @title           FlowBoard API
// @version         1.0
// @description     Personal Kanban board with an AI chat assistant.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()

	s, err := server.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
