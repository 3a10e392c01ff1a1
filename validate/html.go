package validate

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/hashes"
)

const maxBodySize = 10 << 20

// Page is a fetched document after meta refresh redirects were followed.
type Page struct {
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Fetch retrieves target with the given user agent. HTTP redirects are
// followed by the client, meta refresh redirects by Fetch itself, at most
// maxMetaRedirects times.
func Fetch(ctx context.Context, client *http.Client, target, userAgent string, maxMetaRedirects int) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error making request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "error reading response")
	}
	page := &Page{URL: resp.Request.URL, Header: resp.Header, Body: body}

	next, ok := metaRefresh(body)
	if !ok {
		gologger.Debug().Msgf("Final host: %s", page.URL)
		return page, nil
	}
	parsed, err := url.Parse(next)
	if err != nil {
		gologger.Warning().Msgf("Could not parse redirect url %s: %s", next, err)
		return page, nil
	}
	if maxMetaRedirects <= 0 {
		gologger.Warning().Msgf("Not following meta redirect from %s, limit reached", page.URL)
		return page, nil
	}
	absolute := page.URL.ResolveReference(parsed)
	gologger.Debug().Msgf("Fetching data from HTML meta redirect to %s", absolute)
	return Fetch(ctx, client, absolute.String(), userAgent, maxMetaRedirects-1)
}

// metaRefresh returns the target of a <meta http-equiv="refresh"> tag.
func metaRefresh(body []byte) (string, bool) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	for _, n := range htmlquery.Find(doc, "//meta[@http-equiv]") {
		if !strings.EqualFold(htmlquery.SelectAttr(n, "http-equiv"), "refresh") {
			continue
		}
		for _, part := range strings.Split(htmlquery.SelectAttr(n, "content"), ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
				return strings.Trim(part[4:], `'"`), true
			}
		}
	}
	return "", false
}

// parsedPolicy maps directive names to their served tokens.
type parsedPolicy map[csp.Directive][]string

// parsePolicy splits a served policy. The first occurrence of a directive wins.
func parsePolicy(value string) parsedPolicy {
	p := parsedPolicy{}
	for _, segment := range strings.Split(value, ";") {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		d := csp.Directive(strings.ToLower(fields[0]))
		if _, ok := p[d]; !ok {
			p[d] = fields[1:]
		}
	}
	return p
}

// sources returns the tokens governing d, falling back to default-src.
func (p parsedPolicy) sources(d csp.Directive) ([]string, csp.Directive, bool) {
	if list, ok := p[d]; ok {
		return list, d, true
	}
	list, ok := p[csp.DefaultSrc]
	return list, csp.DefaultSrc, ok
}

// allowsInline reports whether an inline element with the given nonce and
// body may run under list. 'unsafe-inline' is ignored once a nonce or hash
// is present.
func allowsInline(list []string, nonce, body string) bool {
	hash := hashes.Hash(body)
	hasNonceOrHash, unsafeInline := false, false
	for _, token := range list {
		lower := strings.ToLower(token)
		switch {
		case strings.HasPrefix(lower, "'nonce-"):
			hasNonceOrHash = true
			if nonce != "" && token == "'nonce-"+nonce+"'" {
				return true
			}
		case strings.HasPrefix(lower, "'sha256-"), strings.HasPrefix(lower, "'sha384-"), strings.HasPrefix(lower, "'sha512-"):
			hasNonceOrHash = true
			if token == hash {
				return true
			}
		case lower == csp.UnsafeInline:
			unsafeInline = true
		}
	}
	return unsafeInline && !hasNonceOrHash
}

var inlineElements = map[csp.Directive]string{
	csp.ScriptSrc: "script:not([src])",
	csp.StyleSrc:  "style",
}

// InlineFindings reports inline <script> and <style> elements of body that
// the served policy value would block.
func InlineFindings(policy string, body []byte) ([]Finding, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse page")
	}
	p := parsePolicy(policy)

	var findings []Finding
	for _, d := range []csp.Directive{csp.ScriptSrc, csp.StyleSrc} {
		list, governing, ok := p.sources(d)
		if !ok {
			continue
		}
		doc.Find(inlineElements[d]).Each(func(i int, s *goquery.Selection) {
			if t := strings.ToLower(s.AttrOr("type", "")); t == "application/ld+json" || t == "application/json" {
				return
			}
			body := s.Text()
			if allowsInline(list, s.AttrOr("nonce", ""), body) {
				return
			}
			findings = append(findings, Finding{
				Kind:      InlineBlocked,
				Header:    csp.HeaderName,
				Directive: governing,
				Element:   goquery.NodeName(s),
				Actual:    snippet(body),
			})
		})
	}
	return findings, nil
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
