package main

import (
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/levels"
)

const VERSION = "0.1.0"

type Options struct {
	ConfigFile   string
	ConfigName   string
	UserAgent    string
	Insecure     bool
	Host         string
	URL          string
	SettingsFile string
	TemplatesDir string
	HashesFile   string
	Serve        string
	SentryDSN    string
	Environment  string
	Debug        bool
	Silent       bool
	Version      bool
}

// ParseOptions parses the command line flags.
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription("secure-headers renders, checks and serves security header configurations.")

	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&options.ConfigFile, "config", "c", "", "settings file (defaults to $SECURE_HEADERS_CONFIG)"),
		flagSet.StringVarP(&options.ConfigName, "name", "n", "", "named configuration to use"),
		flagSet.StringVarP(&options.HashesFile, "hashes", "hf", "", "hashes file (defaults to $SECURE_HEADERS_HASHES_FILE)"),
	)
	flagSet.CreateGroup("render", "Render",
		flagSet.StringVarP(&options.UserAgent, "user-agent", "ua", "", "user agent to render for"),
		flagSet.BoolVar(&options.Insecure, "http", false, "render for a plain http request"),
		flagSet.StringVar(&options.Host, "host", "", "request host, used for the Public-Key-Pins report guard"),
	)
	flagSet.CreateGroup("validate", "Validate",
		flagSet.StringVarP(&options.URL, "url", "u", "", "url to check against the configuration"),
		flagSet.StringVarP(&options.SettingsFile, "validate-settings", "vs", "", "validation settings file"),
	)
	flagSet.CreateGroup("hashes", "Hashes",
		flagSet.StringVarP(&options.TemplatesDir, "templates", "t", "", "directory of templates to generate inline hashes for"),
	)
	flagSet.CreateGroup("serve", "Serve",
		flagSet.StringVarP(&options.Serve, "serve", "s", "", "address to serve a demo site on"),
		flagSet.StringVar(&options.SentryDSN, "sentry-dsn", "", "Sentry DSN (defaults to $SENTRY_DSN)"),
		flagSet.StringVar(&options.Environment, "env", "development", "environment reported to Sentry"),
	)
	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Debug, "debug", false, "show debug output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results"),
		flagSet.BoolVar(&options.Version, "version", false, "show version"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("Could not parse flags: %s\n", err)
	}

	options.configureOutput()
	if options.Version {
		gologger.Info().Msgf("Current version: %s", VERSION)
	}
	return options
}

func (o *Options) configureOutput() {
	switch {
	case o.Silent:
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	case o.Debug:
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	}
}
