package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/xhad/scholar/pkg/app"
	cfgPkg "github.com/xhad/scholar/pkg/config"
	"github.com/xhad/scholar/server"
)

type Flags struct {
	ConfigPath string
	OwnerID    string
	IngestPath string
	ArxivID    string
	Question   string
	Serve      bool
}

func main() {
	// A missing .env file is fine; real config comes from flags and yaml.
	_ = godotenv.Load()

	flags := parseFlags()

	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := run(a, flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.OwnerID, "owner", defaultOwner(), "Owner id scoping papers and questions")
	flag.StringVar(&flags.IngestPath, "ingest", "", "Path to a PDF to ingest")
	flag.StringVar(&flags.ArxivID, "arxiv", "", "arXiv id to import (e.g. 1706.03762)")
	flag.StringVar(&flags.Question, "ask", "", "Ask one question and exit instead of starting a chat")
	flag.BoolVar(&flags.Serve, "serve", false, "Start the WebSocket server instead of the chat loop")
	flag.Parse()

	return flags
}

func defaultOwner() string {
	if owner := os.Getenv("SCHOLAR_OWNER"); owner != "" {
		return owner
	}
	return "local"
}

func run(a *app.App, flags Flags) error {
	if flags.Serve {
		return server.NewWSServer(a).Start(context.Background(), a.Config.Server.Addr)
	}

	if flags.IngestPath != "" {
		if err := ingestFile(a, flags.OwnerID, flags.IngestPath); err != nil {
			return err
		}
	}

	if flags.ArxivID != "" {
		if err := importArxiv(a, flags.OwnerID, flags.ArxivID); err != nil {
			return err
		}
	}

	if flags.Question != "" {
		return askOnce(a, flags.OwnerID, flags.Question)
	}

	return chatLoop(a, flags.OwnerID)
}
