package config

import (
	"errors"
	"flag"
	"net"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	Addr            string
	DBUrl           string
	MailEndpoint    string
	MailAPIKey      string
	MailFrom        string
	IntakeEmail     string
	RateLimit       int
	RateLimitWindow time.Duration
	Debug           bool
}

func ParseFlags() (cfg Config, err error) {
	var host string
	flag.StringVar(&host, "host", "0.0.0.0", "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", 80, "listen port number (default 80)")
	flag.StringVar(&cfg.DBUrl, "db-url", "intake.sqlite", "path to SQLite3 DB file (default intake.sqlite)")
	flag.StringVar(&cfg.MailEndpoint, "mail-endpoint", "https://api.resend.com/emails", "email API endpoint")
	flag.StringVar(&cfg.MailAPIKey, "mail-api-key", "", "API key for the email provider")
	flag.StringVar(&cfg.MailFrom, "mail-from", "Questionnaire <onboarding@resend.dev>", "sender address for outbound emails")
	flag.StringVar(&cfg.IntakeEmail, "intake-email", "", "address the intake team notification is sent to")
	flag.IntVar(&cfg.RateLimit, "rate-limit", 5, "max accepted submissions per source per window (default 5)")
	var window uint
	flag.UintVar(&window, "rate-window", 3600, "rate limit window in seconds (default 3600)")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.RateLimitWindow = time.Duration(window) * time.Second

	if cfg.MailAPIKey == "" {
		err = errors.New("missing parameter -mail-api-key")
	} else if cfg.IntakeEmail == "" {
		err = errors.New("missing parameter -intake-email")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
