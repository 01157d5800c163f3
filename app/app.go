package app

import (
	"database/sql"

	"github.com/casewell/intake/config"
	"github.com/casewell/intake/form"
	"github.com/casewell/intake/mailer"
	"github.com/casewell/intake/ratelimit"
)

type App struct {
	*sql.DB
	config.Config
	Schema  *form.Schema
	Mailer  mailer.Mailer
	Limiter *ratelimit.Limiter
}
