// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kadirpekel/scout/pkg/httpclient"
)

const maxPageBytes = 10 << 20

// WebLoader fetches a page and extracts its readable text.
type WebLoader struct {
	http *httpclient.Client
}

func NewWebLoader(timeout time.Duration) *WebLoader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebLoader{
		http: httpclient.New(
			httpclient.WithName("web-loader"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(2),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
	}
}

// Load fetches url and returns its text. Content inside <article> or
// <main> is preferred over the whole body when present.
func (l *WebLoader) Load(ctx context.Context, url string) (Document, error) {
	doc := Document{Source: url, Title: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doc, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "scout/1.0 (+https://github.com/kadirpekel/scout)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := l.http.Do(req)
	if err != nil {
		return doc, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doc, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return doc, err
		}
		doc.Content = strings.TrimSpace(string(data))
		return doc, nil
	}

	root, err := html.Parse(body)
	if err != nil {
		return doc, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if title := findFirst(root, atom.Title); title != nil {
		if t := strings.TrimSpace(textOf(title)); t != "" {
			doc.Title = t
		}
	}

	content := findFirst(root, atom.Article)
	if content == nil {
		content = findFirst(root, atom.Main)
	}
	if content == nil {
		content = findFirst(root, atom.Body)
	}
	if content == nil {
		content = root
	}
	doc.Content = ExtractText(content)
	return doc, nil
}

var (
	skippedElements = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Nav: true,
		atom.Header: true, atom.Footer: true, atom.Aside: true, atom.Form: true,
		atom.Svg: true, atom.Iframe: true, atom.Template: true,
	}
	blockElements = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Pre: true, atom.Blockquote: true,
		atom.Table: true, atom.Tr: true, atom.Figure: true, atom.Figcaption: true,
	}

	spaceRun   = regexp.MustCompile(`[ \t\f\r\v]+`)
	newlineRun = regexp.MustCompile(`\n\s*\n(\s*\n)*`)
)

// ExtractText renders the readable text below n with paragraph breaks
// between block elements.
func ExtractText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteString("\n")
				return
			}
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				b.WriteString(" ")
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteString("\n\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString("\n\n")
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	return strings.TrimSpace(newlineRun.ReplaceAllString(text, "\n\n"))
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
