package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
)

// Output flags shared by the listing commands.
var (
	outputFormat string
	templateStr  string
)

// formatList returns the registered output formats for flag help.
func formatList() string {
	return strings.Join(output.Available(), ", ")
}

// newFormatter returns the formatter selected by --output. A --template
// without an explicit format selects the template formatter.
func newFormatter(format, tmpl string) (output.Formatter, error) {
	if tmpl != "" && (format == "" || format == "pretty") {
		format = "template"
	}
	if format == "" {
		format = "pretty"
	}

	f, err := output.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %s)", err, formatList())
	}
	if tf, ok := f.(*output.TemplateFormatter); ok && tmpl != "" {
		tf.SetTemplate(tmpl)
	}
	return f, nil
}

// writeResult formats r to stdout.
func writeResult(r *output.Result) error {
	f, err := newFormatter(outputFormat, templateStr)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// fileSize returns the size of path, or 0 if it cannot be read.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// parseCommaSeparated splits comma-separated arguments and trims whitespace.
func parseCommaSeparated(args ...string) []string {
	var result []string
	for _, s := range args {
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
	}
	return result
}
