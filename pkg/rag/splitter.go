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
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, from paragraph to character level.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// LengthFunc measures a piece of text, usually in tokens.
type LengthFunc func(string) int

// Splitter recursively splits text on the coarsest separator that yields
// pieces under ChunkSize, then merges neighbouring pieces back up to
// ChunkSize with ChunkOverlap carried between chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	length       LengthFunc
}

// NewSplitter creates a splitter. A nil length counts runes.
func NewSplitter(chunkSize, chunkOverlap int, length LengthFunc) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("overlap (%d) must be in [0, %d)", chunkOverlap, chunkSize)
	}
	if length == nil {
		length = utf8.RuneCountInString
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
		length:       length,
	}, nil
}

// Split returns the chunks of text in document order.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, separator)
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if s.length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}
	return chunks
}

func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := s.length(separator)

	var (
		chunks  []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, piece := range pieces {
		n := s.length(piece)
		if total+n+joinLen() > s.chunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop leading pieces until what remains fits the overlap and
			// leaves room for the next piece.
			for len(current) > 0 && (total > s.chunkOverlap || (total+n+joinLen() > s.chunkSize && total > 0)) {
				drop := s.length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
