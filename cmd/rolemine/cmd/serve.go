package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/spcon-go/rolemine/internal/api"
	"github.com/spcon-go/rolemine/internal/crawler"
	"github.com/spcon-go/rolemine/internal/rolemine"
	"github.com/spcon-go/rolemine/internal/store"
)

var (
	flagListenAddr  string
	flagDatabaseURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST/WebSocket mining service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&flagDatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; persistence is disabled if empty")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("Starting the role-mining REST/WebSocket service...")

	var st *store.PostgresStore
	if flagDatabaseURL != "" {
		conn, err := store.Connect(flagDatabaseURL)
		if err != nil {
			log.Printf("warning: failed to connect to PostgreSQL, continuing without persistence: %v", err)
		} else {
			defer conn.Close()
			if err := conn.InitSchema(); err != nil {
				log.Printf("warning: schema init failed: %v", err)
			}
			st = conn
		}
	}

	var bitqueryClient *crawler.Client
	if key := os.Getenv("BITQUERY_API_KEY"); key != "" {
		bitqueryClient = crawler.NewClient(key, nil)
	}

	cfg := rolemine.DefaultConfig()
	cfg.Seed = flagSeed

	server := api.NewServer(cfg, flagWorkspace, bitqueryClient, st)
	router := server.Router()

	log.Printf("Listening on %s", flagListenAddr)
	if err := router.Run(flagListenAddr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
