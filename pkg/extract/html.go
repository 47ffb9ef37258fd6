package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplate is removed before the page text is read.
const boilerplate = "script, style, noscript, nav, footer, header, aside, iframe, svg"

// Page is the readable content of an HTML document.
type Page struct {
	Title       string
	Description string
	Text        string
}

// HTML extracts the title, meta description and visible body text of a page.
// Whitespace runs collapse to single spaces.
func HTML(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse html: %w", err)
	}

	page := Page{
		Title: collapse(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		page.Description = collapse(desc)
	} else if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		page.Description = collapse(desc)
	}

	doc.Find(boilerplate).Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		page.Text = collapse(doc.Text())
	} else {
		page.Text = collapse(body.Text())
	}
	return page, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
