package completion

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/lspcomplete/internal/lsp"
	"github.com/dshills/lspcomplete/internal/snippet"
)

// variableResolver answers the TextMate variables a snippet may use. Line
// variables refer to the line the edit starts on, TM_SELECTED_TEXT to the
// text the edit replaces.
func variableResolver(path, text string, start, end int) snippet.Resolver {
	pc := lsp.NewPositionConverter(text)
	line := pc.LineAt(start)
	base := filepath.Base(path)

	return func(name string) (string, bool) {
		switch name {
		case "TM_FILENAME":
			return base, true
		case "TM_FILENAME_BASE":
			return strings.TrimSuffix(base, filepath.Ext(base)), true
		case "TM_FILEPATH":
			return path, true
		case "TM_DIRECTORY":
			return filepath.Dir(path), true
		case "TM_LINE_INDEX":
			return strconv.Itoa(line), true
		case "TM_LINE_NUMBER":
			return strconv.Itoa(line + 1), true
		case "TM_CURRENT_LINE":
			return pc.LineContent(line), true
		case "TM_SELECTED_TEXT":
			return text[start:end], true
		case "TM_CURRENT_WORD":
			return "", true
		}
		return "", false
	}
}

// lineIndent returns the leading blanks of the line holding offset.
func lineIndent(text string, offset int) string {
	pc := lsp.NewPositionConverter(text)
	content := pc.LineContent(pc.LineAt(offset))
	return content[:len(content)-len(strings.TrimLeft(content, " \t"))]
}
