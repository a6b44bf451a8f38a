package parser

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	carriageReturnEntity = "&#13;"
	cfEmailAttr          = "data-cfemail"
)

var cfEmailExpr = regexp.MustCompile(`<a[^>]*?data-cfemail="([0-9a-fA-F]*)"[^>]*>.*?</a>`)

// NormalizeText decodes obfuscated e-mail anchors in place and drops carriage return entities.
func NormalizeText(text string) string {
	text = cfEmailExpr.ReplaceAllStringFunc(text, func(anchor string) string {
		m := cfEmailExpr.FindStringSubmatch(anchor)
		plain, err := DecodeEmail(m[1])
		if err != nil {
			return anchor
		}
		return string(plain)
	})
	return strings.ReplaceAll(text, carriageReturnEntity, "")
}

// DecodeEmail reverses the e-mail obfuscation: hex payload whose first byte is the XOR key
// for the rest.
func DecodeEmail(encoded string) ([]byte, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode email: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("decode email: empty payload")
	}
	key := raw[0]
	plain := make([]byte, len(raw)-1)
	for i, b := range raw[1:] {
		plain[i] = b ^ key
	}
	return plain, nil
}

func newDocument(content []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// innerText renders the children of the first node of sel and normalizes the result.
func innerText(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	raw, err := renderChildren(sel.Get(0))
	if err != nil {
		return "", err
	}
	return NormalizeText(raw), nil
}

// innerTextWithoutLinks is innerText with anchors replaced by their content.
// Obfuscated e-mail anchors are kept so that NormalizeText can decode them.
func innerTextWithoutLinks(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	node := sel.First().Clone().Get(0)
	unwrapAnchors(node)
	raw, err := renderChildren(node)
	if err != nil {
		return "", err
	}
	return NormalizeText(raw), nil
}

func renderChildren(node *html.Node) (string, error) {
	var buf strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&buf, child); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func unwrapAnchors(node *html.Node) {
	for child := node.FirstChild; child != nil; {
		next := child.NextSibling
		unwrapAnchors(child)
		if child.Type == html.ElementNode && child.Data == "a" && !hasAttr(child, cfEmailAttr) {
			for grandchild := child.FirstChild; grandchild != nil; {
				following := grandchild.NextSibling
				child.RemoveChild(grandchild)
				node.InsertBefore(grandchild, child)
				grandchild = following
			}
			node.RemoveChild(child)
		}
		child = next
	}
}

func hasAttr(node *html.Node, key string) bool {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
