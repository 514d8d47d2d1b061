// Package main はターミナルからサインインするクライアントです。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/yourusername/signin/internal/auth"
	"github.com/yourusername/signin/internal/config"
	"github.com/yourusername/signin/internal/signin"
	"github.com/yourusername/signin/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	server := flag.String("server", cfg.AuthServerURL, "base URL of the auth API")
	signOut := flag.Bool("logout", false, "remove the saved session and exit")
	force := flag.Bool("force", false, "sign in again even if a saved session is still valid")
	flag.Parse()

	local, err := storage.NewLocal(cfg.SessionDir)
	if err != nil {
		log.Fatalf("Failed to open session storage: %v", err)
	}

	logger := log.New(os.Stderr, "signin: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *signOut {
		if err := logout(ctx, local, os.Stdout); err != nil {
			logger.Fatalf("sign-out failed: %v", err)
		}
		return
	}
	if !*force {
		current, err := activeSession(ctx, local, time.Now())
		if err != nil {
			logger.Printf("ignoring saved session: %v", err)
		}
		if current != nil {
			fmt.Printf("Already signed in as %s until %s (use -force to sign in again)\n",
				current.Identifier, current.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return
		}
	}

	effects := terminalEffects{w: os.Stdout}
	authenticator := signin.WithTimeout(auth.NewHTTPAuthenticator(*server, &http.Client{}), cfg.AuthTimeout())
	ctrl, err := signin.NewController(authenticator,
		signin.WithNavigator(effects),
		signin.WithNotifier(effects),
		signin.WithSessionStore(local),
		signin.WithDestination(cfg.PostLoginPath),
		signin.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	session, err := run(ctx, surveyPrompter{}, signin.NewForm("terminal", ctrl, nil), os.Stdout)
	if err != nil {
		if errors.Is(err, errAborted) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		logger.Printf("sign-in failed: %v", err)
		os.Exit(1)
	}
	logger.Printf("session saved to %s (expires %s)", local.Path(), session.ExpiresAt.Format("2006-01-02 15:04"))
}
