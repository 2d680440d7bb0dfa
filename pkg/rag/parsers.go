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
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// Document is one loaded source before splitting.
type Document struct {
	Source  string
	Title   string
	Content string
}

// maxSheetCells limits how much of a spreadsheet is indexed.
const maxSheetCells = 1000

// SupportedExtensions lists the file types ParseFile understands.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md"}

// IsSupported reports whether path has a parseable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ParseFile extracts the text of a local file.
func ParseFile(ctx context.Context, path string) (Document, error) {
	doc := Document{Source: path, Title: filepath.Base(path)}

	var (
		content string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = parsePDF(ctx, path)
	case ".docx":
		content, err = parseDocx(path)
	case ".xlsx":
		content, err = parseXlsx(ctx, path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return doc, err
	}
	doc.Content = strings.TrimSpace(content)
	return doc, nil
}

func parsePDF(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseDocx(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()
	return stripXMLTags(doc.Editable().GetContent()), nil
}

// stripXMLTags drops the WordprocessingML markup docx returns, keeping
// paragraph breaks.
func stripXMLTags(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n\n")
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}

func parseXlsx(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s\n", sheet)
		cells := 0
	rowLoop:
		for rowIndex, row := range rows {
			for colIndex, cell := range row {
				if cells >= maxSheetCells {
					b.WriteString("... (truncated)\n")
					break rowLoop
				}
				if text := strings.TrimSpace(cell); text != "" {
					fmt.Fprintf(&b, "%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text)
					cells++
				}
			}
		}
		if cells > 0 {
			parts = append(parts, strings.TrimSpace(b.String()))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// columnLetter converts a 0-based column index to A, B, ..., Z, AA, ...
func columnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}
