package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// documentText returns the text of binary document formats read_file
// understands. ok is false for anything else.
func documentText(path string) (text string, ok bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = parsePDF(path)
		return text, true, err
	case ".xlsx", ".xlsm":
		text, err = parseExcel(path)
		return text, true, err
	}
	return "", false, nil
}

// parsePDF extracts the plain text of every page.
func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			fmt.Fprintf(&sb, "[error reading page %d: %v]\n", i, err)
			continue
		}
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\x00", "")
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", i, strings.TrimSpace(text))
	}
	return sb.String(), nil
}

// parseExcel renders each sheet as a Markdown table.
func parseExcel(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		switch {
		case err != nil:
			fmt.Fprintf(&sb, "--- Sheet: %s (error: %v) ---\n\n", sheet, err)
		case len(rows) == 0:
			fmt.Fprintf(&sb, "--- Sheet: %s (empty) ---\n\n", sheet)
		default:
			fmt.Fprintf(&sb, "--- Sheet: %s ---\n%s\n", sheet, rowsToMarkdown(rows))
		}
	}
	return sb.String(), nil
}

func rowsToMarkdown(rows [][]string) string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	cells := func(row []string) string {
		out := make([]string, width)
		for i := range out {
			if i < len(row) {
				out[i] = strings.ReplaceAll(strings.ReplaceAll(row[i], "|", `\|`), "\n", " ")
			}
		}
		return "| " + strings.Join(out, " | ") + " |\n"
	}

	var sb strings.Builder
	sb.WriteString(cells(rows[0]))
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, row := range rows[1:] {
		sb.WriteString(cells(row))
	}
	return sb.String()
}
