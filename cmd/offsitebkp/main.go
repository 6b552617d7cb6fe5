package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/offsitebkp/internal/app"
	"github.com/dmitrijs2005/offsitebkp/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(app.ExitInvalidInput)
	}

	os.Exit(a.Run(ctx))

}
