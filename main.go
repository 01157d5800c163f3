package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/casewell/intake/app"
	"github.com/casewell/intake/config"
	"github.com/casewell/intake/database"
	"github.com/casewell/intake/form"
	"github.com/casewell/intake/log"
	"github.com/casewell/intake/mailer"
	"github.com/casewell/intake/ratelimit"
	"github.com/casewell/intake/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	app := app.App{
		DB:     db,
		Config: cfg,
		Schema: form.Questionnaire(),
		Mailer: &mailer.APIMailer{
			Endpoint: cfg.MailEndpoint,
			APIKey:   cfg.MailAPIKey,
		},
		Limiter: ratelimit.New(db, cfg.RateLimit, cfg.RateLimitWindow),
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
