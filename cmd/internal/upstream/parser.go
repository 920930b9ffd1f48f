package upstream

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// LoginPage is what the parser extracted from the upstream login HTML.
//
// A valid page carries an iframe whose src has a token query parameter, a
// redirect script, and no recognizable error block. All three are required;
// an error block short-circuits validation with its text.
type LoginPage struct {
	Token       string
	Fingerprint string
	User        string
	Refresh     string
	RedirectURL string

	hasRedirectScript bool
}

// RefreshPage is what the parser extracted from the legacy refresh HTML.
type RefreshPage struct {
	Token       string
	Fingerprint string
}

// ResponseParser extracts tokens, redirect URLs, and error text from upstream
// HTML fragments. The extraction strategy (structured HTML walk vs regex) is
// an implementation detail behind this contract.
type ResponseParser interface {
	ParseLogin(body string) (LoginPage, error)
	ParseRefresh(body string) (RefreshPage, error)
}

// HTMLParser is the default ResponseParser. It walks the document tree for
// the iframe and error block, and pattern-matches inline scripts for the
// refresh-token assignment, which upstream never exposes as markup.
type HTMLParser struct{}

var (
	redirectScriptRe = regexp.MustCompile(`(?:window|document|top)\.location(?:\.href)?\s*=`)
	refreshTokenRe   = regexp.MustCompile(`refreshToken\s*=\s*['"]([^'"]+)['"]`)
	fingerprintRe    = regexp.MustCompile(`fingerprint\s*=\s*['"]([^'"]+)['"]`)
)

// ParseLogin validates the login response HTML and extracts the token and its
// companions from the iframe URL's query parameters.
func (HTMLParser) ParseLogin(body string) (LoginPage, error) {
	const op = "login"

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return LoginPage{}, ParseError{Op: op, Reason: "malformed html"}
	}

	var page LoginPage
	var errorText string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "iframe":
				if src := attr(n, "src"); src != "" && page.RedirectURL == "" {
					page.RedirectURL = src
				}
			case "script":
				if redirectScriptRe.MatchString(textOf(n)) {
					page.hasRedirectScript = true
				}
			default:
				if errorText == "" && isErrorBlock(n) {
					errorText = strings.TrimSpace(textOf(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// An explicit upstream error wins over any structural check.
	if errorText != "" {
		return LoginPage{}, ParseError{Op: op, Reason: errorText}
	}

	if page.RedirectURL == "" {
		return LoginPage{}, ParseError{Op: op, Reason: "no iframe in response"}
	}
	if !page.hasRedirectScript {
		return LoginPage{}, ParseError{Op: op, Reason: "no redirect script in response"}
	}

	u, err := url.Parse(page.RedirectURL)
	if err != nil {
		return LoginPage{}, ParseError{Op: op, Reason: "unparsable iframe url"}
	}
	q := u.Query()
	page.Token = q.Get("token")
	page.Fingerprint = q.Get("fingerprint")
	page.User = q.Get("user")
	page.Refresh = q.Get("refresh")

	if page.Token == "" {
		return LoginPage{}, ParseError{Op: op, Reason: "iframe url carries no token"}
	}
	return page, nil
}

// ParseRefresh pattern-matches the refresh-token assignment inside the inline
// script of the legacy refresh page.
func (HTMLParser) ParseRefresh(body string) (RefreshPage, error) {
	const op = "tokenrefresh"

	m := refreshTokenRe.FindStringSubmatch(body)
	if m == nil {
		return RefreshPage{}, ParseError{Op: op, Reason: "refresh token not found in response"}
	}

	page := RefreshPage{Token: m[1]}
	if fm := fingerprintRe.FindStringSubmatch(body); fm != nil {
		page.Fingerprint = fm[1]
	}
	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// isErrorBlock recognizes the upstream's login error container: an element
// whose id or class mentions "error".
func isErrorBlock(n *html.Node) bool {
	if strings.Contains(strings.ToLower(attr(n, "id")), "error") {
		return true
	}
	for _, cls := range strings.Fields(attr(n, "class")) {
		if strings.Contains(strings.ToLower(cls), "error") {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
