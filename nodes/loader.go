package nodes

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/nodegraph/dataflow/flow"
	"github.com/nodegraph/dataflow/schema"
)

// PDFLoaderNode streams a PDF document page by page: each page's
// plain text is emitted as a chunk on "pages", and the number of pages
// emitted (empty or unreadable pages are skipped) is latched on "count".
type PDFLoaderNode struct {
	*flow.BaseNode
}

// NewPDFLoaderNode constructs a pdf_loader node.
func NewPDFLoaderNode(id string, cfg map[string]any) (flow.Node, error) {
	outputs := map[string]schema.Schema{
		"pages": schema.NewStruct(schema.KindStreaming, map[string]schema.Tag{
			"text": schema.TagString,
			"page": schema.TagInteger,
		}),
		"count": schema.New(schema.KindValue, schema.TagInteger),
	}
	return &PDFLoaderNode{
		BaseNode: flow.NewBaseNode(id, "pdf_loader", flow.ModeSequential, nil, outputs, cfg),
	}, nil
}

func (n *PDFLoaderNode) Run(rc flow.RunContext) (any, error) {
	path := asString(n.GetConfig("path", ""), "")
	if path == "" {
		return nil, fmt.Errorf("pdf_loader %s: path is required", n.ID())
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf_loader %s: opening %s: %w", n.ID(), path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	emitted := 0
	for i := 1; i <= total; i++ {
		if rc.Err() != nil {
			break
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			rc.LogEvent("WARNING", n.ID(), fmt.Sprintf("page %d unreadable: %v", i, err))
			continue
		}
		if err := n.Emit("pages", map[string]any{"text": text, "page": i}); err != nil {
			return nil, err
		}
		emitted++
	}
	if err := n.CloseOutput("pages"); err != nil {
		return nil, err
	}
	if err := n.SetValue("count", emitted); err != nil {
		return nil, err
	}
	return map[string]any{"pages": emitted}, nil
}
