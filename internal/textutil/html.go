package textutil

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	urlPattern    = regexp.MustCompile(`(?i)(?:https?|ftp|www\.)\S+`)
	domainPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9][a-z0-9-]{0,61}[a-z0-9]\b`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// StripHTMLAndURLs removes markup, URLs and bare domain names from text and
// collapses whitespace. Used for plain-text descriptions in listings.
func StripHTMLAndURLs(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = domainPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var (
	allowedTags = map[string]bool{"p": true, "br": true, "b": true, "i": true, "em": true, "strong": true, "a": true}
	allowedAttr = map[string]bool{"href": true, "target": true, "rel": true}
	// Elements whose content is dropped together with the element.
	droppedContent = map[string]bool{
		"script": true, "style": true, "template": true, "noscript": true, "iframe": true,
		"object": true, "embed": true, "title": true, "head": true, "textarea": true,
		"select": true, "svg": true, "math": true,
	}
)

// SanitizeHTML keeps only basic formatting markup (p, br, b, i, em, strong
// and a with href/target/rel). Other tags are unwrapped to their text,
// script-like elements are dropped whole, and unsafe href schemes are removed.
// Output tags are balanced.
func SanitizeHTML(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(input))
	var (
		out  strings.Builder
		open []string
		skip int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		switch tt {
		case html.TextToken:
			if skip == 0 {
				out.WriteString(html.EscapeString(tok.Data))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name := tok.Data
			if droppedContent[name] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || !allowedTags[name] {
				continue
			}
			writeStartTag(&out, tok)
			if name != "br" && tt == html.StartTagToken {
				open = append(open, name)
			}
		case html.EndTagToken:
			name := tok.Data
			if droppedContent[name] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedTags[name] || name == "br" {
				continue
			}
			idx := -1
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				continue
			}
			for i := len(open) - 1; i >= idx; i-- {
				out.WriteString("</" + open[i] + ">")
			}
			open = open[:idx]
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return out.String()
}

func writeStartTag(out *strings.Builder, tok html.Token) {
	out.WriteByte('<')
	out.WriteString(tok.Data)
	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" || !allowedAttr[key] {
			continue
		}
		if key == "href" && !safeHref(attr.Val) {
			continue
		}
		out.WriteByte(' ')
		out.WriteString(key)
		out.WriteString(`="`)
		out.WriteString(html.EscapeString(attr.Val))
		out.WriteByte('"')
	}
	out.WriteByte('>')
}

func safeHref(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto", "tel":
		return true
	default:
		return false
	}
}

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)
