// chatstub runs the in-memory development backend: the REST and realtime
// endpoints the client stack talks to, pre-seeded with demo accounts.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/designpro/chatkit/internal/stub"
	"github.com/designpro/chatkit/pkg/identity"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	secret := flag.String("secret", "dev-secret", "token signing secret")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	backend := stub.New([]byte(*secret), logger)
	seed := func(p identity.Profile) identity.Profile {
		id, err := backend.SeedUser(p, "password123")
		if err != nil {
			logger.Error("seed user", slog.String("email", p.Email), slog.Any("error", err))
			os.Exit(1)
		}
		p.ID = id
		return p
	}
	customer := seed(identity.Profile{Name: "Demo Customer", Email: "customer@example.com", UserType: "CUS"})
	designer := seed(identity.Profile{Name: "Demo Designer", Email: "designer@example.com", UserType: "DES"})
	roomID := backend.SeedRoom(customer, designer)
	logger.Info("seeded demo data",
		slog.String("customer", customer.Email),
		slog.String("designer", designer.Email),
		slog.Int("room_id", roomID))

	server := &http.Server{
		Addr:    *addr,
		Handler: backend.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("listening", slog.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
