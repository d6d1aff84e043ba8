package host

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/lang"
	"github.com/odvcencio/meacode/lsp"
)

func (h *Handler) lspCommands() []Command {
	return []Command{
		{
			Name:        bridge.CmdLspCompletion,
			Description: "Completion items from the file's language server.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				doc, pos, err := h.document(params)
				if err != nil {
					return nil, err
				}
				items, err := h.lsp.Completion(ctx, doc, pos)
				if err != nil {
					return nil, err
				}
				out := make([]bridge.CompletionItem, 0, len(items))
				for _, item := range items {
					out = append(out, bridge.CompletionItem{Label: item.Label, Detail: item.Detail})
				}
				return out, nil
			},
		},
		{
			Name:        bridge.CmdLspHover,
			Description: "Hover text from the file's language server.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				doc, pos, err := h.document(params)
				if err != nil {
					return nil, err
				}
				hover, err := h.lsp.Hover(ctx, doc, pos)
				if err != nil || hover == nil {
					return nil, err
				}
				return bridge.Hover{Contents: hover.Contents}, nil
			},
		},
		{
			Name:        bridge.CmdLspDiagnostics,
			Description: "Diagnostics published by the file's language server.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				doc, _, err := h.document(params)
				if err != nil {
					return nil, err
				}
				diags, err := h.lsp.Diagnostics(ctx, doc)
				if err != nil {
					return nil, err
				}
				return convertDiagnostics(diags), nil
			},
		},
	}
}

func (h *Handler) document(params json.RawMessage) (lsp.Document, lsp.Position, error) {
	p, err := bind[bridge.DocumentParams](params)
	if err != nil {
		return lsp.Document{}, lsp.Position{}, err
	}
	if err := required("path", p.Path); err != nil {
		return lsp.Document{}, lsp.Position{}, err
	}
	language := lang.Detect(p.Path)
	if language == lang.Plaintext && p.Language != "" {
		language = p.Language
	}
	doc := lsp.Document{
		Path:     h.resolvePath(p.Path),
		Language: language,
		Root:     h.Workspace(),
		Text:     p.Content,
	}
	return doc, lsp.Position{Line: p.Line, Character: p.Character}, nil
}

func convertDiagnostics(diags []lsp.Diagnostic) []bridge.Diagnostic {
	out := make([]bridge.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, bridge.Diagnostic{
			Message:   d.Message,
			Severity:  clampSeverity(d.Severity),
			StartLine: d.Range.Start.Line,
			StartCol:  d.Range.Start.Character,
			EndLine:   d.Range.End.Line,
			EndCol:    d.Range.End.Character,
		})
	}
	return out
}

// clampSeverity folds LSP hints (4) and missing severities into 1..3.
func clampSeverity(s int) int {
	switch {
	case s <= 0:
		return bridge.SeverityError
	case s > bridge.SeverityInfo:
		return bridge.SeverityInfo
	}
	return s
}
