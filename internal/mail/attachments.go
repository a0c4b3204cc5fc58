// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mail

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcem/outreach/internal/models"
)

const defaultContentType = "application/octet-stream"

// loadAttachments fills in content, filename and content type. File paths
// always resolve inside root.
func loadAttachments(root string, atts []models.Attachment) ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(atts))
	for _, a := range atts {
		if len(a.Content) == 0 && a.Path != "" {
			p := resolvePath(root, a.Path)
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("load attachment %q: %w", a.Path, err)
			}
			a.Content = data
			if a.Filename == "" {
				a.Filename = filepath.Base(p)
			}
		}
		if a.Filename == "" {
			a.Filename = "attachment"
		}
		if a.ContentType == "" {
			a.ContentType = contentType(a.Filename)
		}
		out = append(out, a)
	}
	return out, nil
}

// resolvePath maps an upload path like "/uploads/x.pdf" under root.
func resolvePath(root, p string) string {
	clean := filepath.Clean("/" + strings.TrimPrefix(filepath.ToSlash(p), "/"))
	return filepath.Join(root, clean)
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return defaultContentType
}
