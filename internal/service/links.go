package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	pdfLinkRe   = regexp.MustCompile(`(?i)Download.*PDF`)
	txtLinkRe   = regexp.MustCompile(`(?i)Download.*text.*file`)
	redirectURL = regexp.MustCompile(`&U=(.+?)&`)
)

// extractFileLinks parses the Kindle email HTML for the PDF and text-file
// download links. Amazon wraps the real URLs in gp/f.html redirects with the
// target URL-encoded in the U parameter. The PDF link is required; the text
// link is only present when "Convert to text" was selected on the device.
func extractFileLinks(htmlBody string) (pdfURL, txtURL string, err error) {
	if htmlBody == "" {
		return "", "", fmt.Errorf("no HTML content in the email")
	}

	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse email HTML: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			text := strings.TrimSpace(nodeText(n))
			href := attrValue(n, "href")
			if href != "" {
				switch {
				case pdfLinkRe.MatchString(text) && pdfURL == "":
					pdfURL = resolveRedirect(href)
				case txtLinkRe.MatchString(text) && txtURL == "":
					txtURL = resolveRedirect(href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if pdfURL == "" {
		return "", "", fmt.Errorf("no PDF download link found in the email body")
	}
	return pdfURL, txtURL, nil
}

func resolveRedirect(href string) string {
	if !strings.Contains(href, "amazon.com/gp/f.html") {
		return href
	}
	m := redirectURL.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return ""
	}
	return decoded
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
