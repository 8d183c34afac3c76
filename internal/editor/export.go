package editor

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Export formats
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// ExportFormats lists the formats offered by the export prompt
var ExportFormats = []string{FormatText, FormatMarkdown, FormatHTML}

const htmlPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Document</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
    </style>
</head>
<body>
    <div>%s</div>
</body>
</html>`

// Render converts document text to an export format
func Render(text string, format string) (string, error) {
	switch format {
	case FormatText:
		return text, nil
	case FormatMarkdown:
		return "# Document\n\n" + text, nil
	case FormatHTML:
		body := strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
		return fmt.Sprintf(htmlPage, body), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// DatedName returns document-YYYY-MM-DD.<ext>
func DatedName(now time.Time, ext string) string {
	return fmt.Sprintf("document-%s.%s", now.Format("2006-01-02"), ext)
}
