package headers

import (
	"fmt"
	"net/url"
	"strings"
)

// Clear-Site-Data types.
const (
	ClearCache              = "cache"
	ClearCookies            = "cookies"
	ClearStorage            = "storage"
	ClearExecutionContexts  = "executionContexts"
	clearSiteDataHeaderName = "Clear-Site-Data"
)

// AllClearSiteDataTypes is used when Clear-Site-Data is enabled without types.
var AllClearSiteDataTypes = []string{ClearCache, ClearCookies, ClearStorage, ClearExecutionContexts}

// ClearSiteData configures the Clear-Site-Data header.
type ClearSiteData struct {
	Types  []string `yaml:"types"`
	OptOut bool     `yaml:"-"`
}

// Validate rejects unknown data types.
func (c ClearSiteData) Validate() error {
	if c.OptOut {
		return nil
	}
	for _, t := range c.Types {
		if !contains(AllClearSiteDataTypes, t) {
			return NewConfigError(KeyClearSiteData, "unknown type %q, expected one of %s", t, strings.Join(AllClearSiteDataTypes, ", "))
		}
	}
	return nil
}

// Make renders the quoted, comma separated type list.
func (c ClearSiteData) Make() Header {
	types := c.Types
	if len(types) == 0 {
		types = AllClearSiteDataTypes
	}
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = `"` + t + `"`
	}
	return Header{Name: clearSiteDataHeaderName, Value: strings.Join(quoted, ", ")}
}

// ExpectCT configures the Expect-CT header.
type ExpectCT struct {
	MaxAge    int    `yaml:"max_age"`
	Enforce   bool   `yaml:"enforce"`
	ReportURI string `yaml:"report_uri"`
}

func (e ExpectCT) Validate() error {
	if e.MaxAge < 0 {
		return NewConfigError(KeyExpectCT, "max_age must be a non-negative integer, got %d", e.MaxAge)
	}
	if e.ReportURI != "" {
		if _, err := url.Parse(e.ReportURI); err != nil {
			return NewConfigError(KeyExpectCT, "report_uri %q is not a valid URI", e.ReportURI)
		}
	}
	return nil
}

func (e ExpectCT) Make() Header {
	var parts []string
	if e.Enforce {
		parts = append(parts, "enforce")
	}
	parts = append(parts, fmt.Sprintf("max-age=%d", e.MaxAge))
	if e.ReportURI != "" {
		parts = append(parts, fmt.Sprintf(`report-uri="%s"`, e.ReportURI))
	}
	return Header{Name: "Expect-CT", Value: strings.Join(parts, ", ")}
}

// Pin is a single Public-Key-Pins pin.
type Pin struct {
	Algorithm string `yaml:"algorithm"`
	Value     string `yaml:"value"`
}

// PublicKeyPins configures Public-Key-Pins and its report-only variant.
type PublicKeyPins struct {
	MaxAge            int    `yaml:"max_age"`
	Pins              []Pin  `yaml:"pins"`
	IncludeSubdomains bool   `yaml:"include_subdomains"`
	ReportURI         string `yaml:"report_uri"`
	ReportOnly        bool   `yaml:"report_only"`
}

func (p PublicKeyPins) Validate() error {
	if p.MaxAge <= 0 {
		return NewConfigError(KeyHPKP, "max_age is required")
	}
	if len(p.Pins) < 2 {
		return NewConfigError(KeyHPKP, "a minimum of 2 pins are required, got %d", len(p.Pins))
	}
	for _, pin := range p.Pins {
		if pin.Algorithm != "sha256" {
			return NewConfigError(KeyHPKP, "unsupported pin algorithm %q", pin.Algorithm)
		}
		if pin.Value == "" {
			return NewConfigError(KeyHPKP, "pin value must not be empty")
		}
	}
	return nil
}

func (p PublicKeyPins) Make() Header {
	name := "Public-Key-Pins"
	if p.ReportOnly {
		name = "Public-Key-Pins-Report-Only"
	}
	parts := []string{fmt.Sprintf("max-age=%d", p.MaxAge)}
	for _, pin := range p.Pins {
		parts = append(parts, fmt.Sprintf(`pin-%s="%s"`, pin.Algorithm, pin.Value))
	}
	if p.ReportURI != "" {
		parts = append(parts, fmt.Sprintf(`report-uri="%s"`, p.ReportURI))
	}
	if p.IncludeSubdomains {
		parts = append(parts, "includeSubDomains")
	}
	return Header{Name: name, Value: strings.Join(parts, "; ")}
}

// ReportHost is the host of the report-uri, empty when unset or unparsable.
func (p PublicKeyPins) ReportHost() string {
	if p.ReportURI == "" {
		return ""
	}
	u, err := url.Parse(p.ReportURI)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
