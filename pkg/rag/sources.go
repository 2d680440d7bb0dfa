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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sources is the fixed document set an index is built from.
type Sources struct {
	URLs  []string
	Paths []string
}

// ExpandPaths resolves files and directories into the sorted list of
// supported files below them. Hidden directories, empty files and files
// larger than maxFileSize are skipped.
func ExpandPaths(paths []string, maxFileSize int64) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string, size int64) {
		if size == 0 || (maxFileSize > 0 && size > maxFileSize) {
			slog.Debug("Skipping file", "path", path, "size", size)
			return
		}
		if !IsSupported(path) || seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(root), info.Size())
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			add(path, info.Size())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}
