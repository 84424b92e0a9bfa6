package message

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	inlineImageClass = "message_inline_image"
	uploadsPrefix    = "/user_uploads"
)

// ContentInfo summarizes the properties of rendered content that narrow
// terms (has:image, has:link, has:attachment) filter on.
type ContentInfo struct {
	HasImage      bool
	HasLink       bool
	HasAttachment bool
}

// Flags converts the summary into content-derived flag bits.
func (c ContentInfo) Flags() Flags {
	var fs Flags
	fs = fs.Set(FlagHasImage, c.HasImage)
	fs = fs.Set(FlagHasLink, c.HasLink)
	fs = fs.Set(FlagHasAttachment, c.HasAttachment)
	return fs
}

// ScanContent tokenizes rendered message HTML and reports which content
// properties it has. Malformed HTML is scanned best effort.
func ScanContent(rendered string) ContentInfo {
	var info ContentInfo
	if rendered == "" {
		return info
	}

	z := html.NewTokenizer(strings.NewReader(rendered))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return info
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if hasClass(tok, inlineImageClass) {
				info.HasImage = true
			}
			if tok.Data == "a" {
				info.HasLink = true
				if href, ok := attr(tok, "href"); ok && strings.HasPrefix(href, uploadsPrefix) {
					info.HasAttachment = true
				}
			}
		}
		if info.HasImage && info.HasLink && info.HasAttachment {
			return info
		}
	}
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(tok html.Token, class string) bool {
	v, ok := attr(tok, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
