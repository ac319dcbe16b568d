package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"blog_visual_assistant/workflow"
)

// handleExport renders the finished post (title, paragraphs, images) as a
// standalone HTML page. Only available once the workflow reached results.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string, eng *workflow.Engine) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := eng.State()
	if st.Stage != workflow.StageResults {
		writeError(w, &workflow.ValidationError{Msg: "post export is only available from the results view"})
		return
	}

	md := exportMarkdown(id, st)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		http.Error(w, "render post: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, exportPage, st.Draft.Title, buf.String())
}

func exportMarkdown(id string, st workflow.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", st.Draft.Title)
	for i, p := range st.Paragraphs {
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "![%s](/api/sessions/%s/paragraphs/%d/image)\n\n", p.Prompt, id, i)
	}
	return sb.String()
}

const exportPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 46rem; margin: 2rem auto; font-family: sans-serif; line-height: 1.6; padding: 0 1rem; }
img { max-width: 100%%; border-radius: 6px; }
</style>
</head>
<body>
%s
</body>
</html>
`
