package rules

import (
	"net/url"
	"path"
	"strings"
)

// ExpectedMIME maps a file extension to the media type a server should send.
var ExpectedMIME = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"txt":  "text/plain",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"exe":  "application/x-msdownload",
	"zip":  "application/zip",
	"js":   "application/javascript",
	"html": "text/html",
	"css":  "text/css",
}

var (
	executableExtensions = []string{"exe", "scr", "pif", "bat", "cmd", "vbs", "jar", "iso"}
	documentMarkers      = []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "rtf"}
)

const (
	MIMEModeExecutable = "executable"
	MIMEModeGeneral    = "general"
)

// MIMEMatcher compares a response Content-Type with the URL extension.
//
// Modes:
//   - executable: document-like content type served under an executable
//     extension
//   - general: known extension whose expected type is absent from the
//     content type
type MIMEMatcher struct {
	Mode string
}

func (m *MIMEMatcher) Kind() string { return KindMIME }

func (m *MIMEMatcher) Match(s Subject) bool {
	fired, _ := m.Check(s.ContentType, s.Extension)
	return fired
}

// Check evaluates the mode. expected is the table entry for ext, if any.
func (m *MIMEMatcher) Check(contentType, ext string) (fired bool, expected string) {
	expected = ExpectedMIME[ext]
	if contentType == "" || ext == "" {
		return false, expected
	}
	switch m.Mode {
	case MIMEModeExecutable:
		return IsExecutableExtension(ext) && isDocumentContent(contentType), expected
	case MIMEModeGeneral:
		return expected != "" && !strings.Contains(contentType, expected), expected
	}
	return false, expected
}

func IsExecutableExtension(ext string) bool {
	for _, e := range executableExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func isDocumentContent(contentType string) bool {
	for _, marker := range documentMarkers {
		if strings.Contains(contentType, marker) {
			return true
		}
	}
	return false
}

// MediaType lowercases a Content-Type value and strips its parameters.
func MediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	return strings.TrimSpace(mediaType)
}

// Extension returns the lowercased extension of the last path segment of
// rawURL, or "" when the segment has none or the URL does not parse.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) < 2 {
		return ""
	}
	return strings.ToLower(ext[1:])
}
