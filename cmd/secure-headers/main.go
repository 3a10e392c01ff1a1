package main

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/hashes"
	"github.com/secinto/secure-headers/report"
	"github.com/secinto/secure-headers/validate"
)

func main() {
	options := ParseOptions()
	if options.Version {
		return
	}

	store := config.NewStore()
	if err := loadStore(store, options.ConfigFile); err != nil {
		gologger.Fatal().Msgf("Could not load configuration: %s\n", err)
	}

	switch {
	case options.TemplatesDir != "":
		if err := generateHashes(options); err != nil {
			gologger.Fatal().Msgf("Could not generate hashes: %s\n", err)
		}
	case options.URL != "" || options.SettingsFile != "":
		if err := validateURLs(store, options); err != nil {
			gologger.Fatal().Msgf("Could not validate: %s\n", err)
		}
	case options.Serve != "":
		if err := report.Setup(options.SentryDSN, options.Environment, VERSION); err != nil {
			gologger.Warning().Msgf("Error reporting disabled: %s", err)
		}
		defer report.Flush()
		if err := serve(store, options); err != nil {
			report.Error(err)
			gologger.Fatal().Msgf("Could not serve: %s\n", err)
		}
	default:
		if err := printHeaders(store, options); err != nil {
			gologger.Fatal().Msgf("Could not render headers: %s\n", err)
		}
	}
}

func loadStore(store *config.Store, location string) error {
	if location != "" {
		return config.LoadFile(store, location)
	}
	return config.LoadFromEnv(store)
}

func printHeaders(store *config.Store, options *Options) error {
	f, err := store.Get(options.ConfigName)
	if err != nil {
		return err
	}
	gologger.Info().Msgf("Rendering %s for %s", f.Name(), csp.VariationFor(options.UserAgent))
	for _, h := range f.HeaderSetFor(options.UserAgent, !options.Insecure, options.Host) {
		gologger.Silent().Msgf("%s: %s", h.Name, h.Value)
	}
	return nil
}

func generateHashes(options *Options) error {
	h, err := hashes.GenerateDir(options.TemplatesDir, nil)
	if err != nil {
		return err
	}
	location := options.HashesFile
	if location == "" {
		location = os.Getenv(hashes.EnvHashesFile)
	}
	if location == "" {
		for _, t := range h.Templates() {
			gologger.Silent().Msgf("%s: scripts=%s styles=%s", t,
				strings.Join(h.Scripts[t], " "), strings.Join(h.Styles[t], " "))
		}
		return nil
	}
	if err := h.Write(location); err != nil {
		return err
	}
	gologger.Info().Msgf("Wrote hashes for %d template(s) to %s", len(h.Templates()), location)
	return nil
}

func validateURLs(store *config.Store, options *Options) error {
	var settings validate.Settings
	if options.SettingsFile != "" {
		s, err := validate.LoadSettings(options.SettingsFile)
		if err != nil {
			return err
		}
		settings = s
	}
	if options.URL != "" {
		settings.URLs = append(settings.URLs, options.URL)
	}
	if options.UserAgent != "" {
		settings.UserAgent = options.UserAgent
	}
	if options.ConfigName != "" {
		settings.Config = options.ConfigName
	}

	reports, err := validate.NewValidator(store, settings).ValidateAll(context.Background())
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		gologger.Silent().Msgf("%s", r)
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d page(s) differ from the configuration", failed, len(reports))
	}
	gologger.Info().Msg("Finished validating deployed headers.")
	return nil
}
