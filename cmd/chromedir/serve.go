package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/engine"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/logging"
	"github.com/ormasoftchile/chromedir/internal/storage"
	"github.com/ormasoftchile/chromedir/internal/wsbridge"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a WebSocket event feed and an HTTP trigger for a GUI front-end",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := storage.New(storeDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	bridge := wsbridge.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bridge.ServeHTTP)
	mux.HandleFunc("/run/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		testID := filepath.Base(r.URL.Path)
		ctx := logging.Default(r.Context())

		def, err := store.GetTest(ctx, testID)
		if err != nil || def == nil {
			http.Error(w, fmt.Sprintf("test %q not found", testID), http.StatusNotFound)
			return
		}

		result := engine.Run(ctx, def, engine.Config{
			Driver:  driver.NewFake(),
			Loader:  store,
			Events:  events.New(bridge.Listener()),
			BaseDir: filepath.Join(storeDir, "tests"),
		})
		store.SaveRun(ctx, testID, result)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	fmt.Printf("chromedir serve: listening on %s (ws /ws, trigger POST /run/<testId>)\n", serveAddr)
	return http.ListenAndServe(serveAddr, mux)
}
