// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loanerdesk/internal/clients"
	"loanerdesk/internal/loaner"
	"loanerdesk/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token := os.Getenv("TDX_KEY")
	if token == "" {
		log.Fatal("TDX_KEY must be set")
	}

	shutdownTracing, err := telemetry.Setup(ctx, "loanerdesk", os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	tdx := clients.NewTDXClient(clients.Config{
		BaseURL:    getEnv("TDX_BASE_URL", "https://teamdynamix.umich.edu/TDWebApi"),
		Token:      token,
		AssetApp:   getEnv("TDX_ASSET_APP", "ITS EUC Assets/CIs"),
		TicketApp:  getEnv("TDX_TICKET_APP", "ITS Tickets"),
		NoOwnerUID: os.Getenv("TDX_NO_OWNER_UID"),
	})

	svc := loaner.NewService(tdx)
	handler := loaner.NewHandler(svc, tdx)

	server := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: handler.Routes(),
	}

	go func() {
		log.Printf("Starting loanerdesk on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
