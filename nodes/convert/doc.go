// Package convert implements format-conversion processors: structured JSON
// payloads to CSV, XML, and a browsable HTML document, plus HTML to Markdown.
// Each conversion emits a FILE_CONVERTED event whose data carries the rendered
// content and the output format.
package convert
