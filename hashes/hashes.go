// Package hashes computes CSP hash sources for inline scripts and styles in
// HTML templates and stores them per template.
package hashes

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
)

// Result holds the hash sources found in one document.
type Result struct {
	Scripts  []string
	Styles   []string
	Warnings []string
}

// Hash returns the sha256 hash source for an inline element body.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"
}

// Generate hashes every inline <script> and <style> element of an HTML
// document. Scripts with a src attribute are skipped.
func Generate(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, errors.Wrap(err, "could not parse document")
	}
	var res Result

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok {
			return
		}
		if t := strings.ToLower(s.AttrOr("type", "")); t == "application/ld+json" || t == "application/json" {
			return
		}
		res.Scripts = appendUnique(res.Scripts, Hash(s.Text()))
	})
	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		body := s.Text()
		res.Styles = appendUnique(res.Styles, Hash(body))
		res.Warnings = append(res.Warnings, stylesheetWarnings(body)...)
	})

	if n := doc.Find("[style]").Length(); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d element(s) use a style attribute, which hashes do not cover", n))
	}
	for _, attr := range []string{"onclick", "onload", "onerror", "onsubmit", "onchange"} {
		if n := doc.Find("[" + attr + "]").Length(); n > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d element(s) use an inline %s handler, which hashes do not cover", n, attr))
		}
	}
	if len(doc.Nodes) > 0 {
		res.Warnings = append(res.Warnings, metaWarnings(doc)...)
	}
	return res, nil
}

// metaWarnings reports http-equiv meta tags that interact with the header
// based policy.
func metaWarnings(doc *goquery.Document) []string {
	var out []string
	for _, n := range htmlquery.Find(doc.Nodes[0], "//meta[@http-equiv]") {
		equiv := strings.ToLower(htmlquery.SelectAttr(n, "http-equiv"))
		switch equiv {
		case "content-security-policy", "content-security-policy-report-only":
			out = append(out, fmt.Sprintf("document declares its own %s meta tag: %q", equiv, htmlquery.SelectAttr(n, "content")))
		case "refresh":
			out = append(out, fmt.Sprintf("document redirects through a meta refresh: %q", htmlquery.SelectAttr(n, "content")))
		}
	}
	return out
}

// stylesheetWarnings parses an inline stylesheet and reports content whose
// loading is governed by other directives.
func stylesheetWarnings(body string) []string {
	sheet, err := parser.Parse(body)
	if err != nil {
		gologger.Warning().Msgf("Could not parse inline stylesheet: %s", err)
		return []string{fmt.Sprintf("inline stylesheet could not be parsed: %s", err)}
	}
	var out []string
	var walk func(rules []*css.Rule)
	walk = func(rules []*css.Rule) {
		for _, rule := range rules {
			if rule.Kind == css.AtRule && strings.TrimPrefix(rule.Name, "@") == "import" {
				out = append(out, fmt.Sprintf("inline stylesheet imports %s, which style-src must allow", strings.TrimSpace(rule.Prelude)))
			}
			for _, decl := range rule.Declarations {
				if strings.Contains(strings.ToLower(decl.Value), "url(") {
					out = append(out, fmt.Sprintf("inline stylesheet loads %s in %s, which img-src or font-src must allow", decl.Value, decl.Property))
				}
			}
			walk(rule.Rules)
		}
	}
	walk(sheet.Rules)
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
