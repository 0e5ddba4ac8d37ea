package main

import (
	"context"
	"log"
	"os"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/daemon"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := daemon.NewApp(cfg, os.Stdout)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
