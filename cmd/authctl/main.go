package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/cli"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.Flags)); err != nil {
		log.Fatalf("%v", err)
	}

}
