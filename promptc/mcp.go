package promptc

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/kit"
	"github.com/PascalJPan/re-be/palette"
	"github.com/PascalJPan/re-be/squiggle"
)

// RegisterMCP registers the deterministic pipeline steps as MCP tools so
// agents can inspect how gestures and colors map to prompts without running
// the full service.
func RegisterMCP(srv *mcp.Server) {
	mw := kit.Chain(kit.Recover())
	registerExtractTool(srv, mw)
	registerClassifyTool(srv, mw)
	registerCompileTool(srv, mw)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var pointsSchema = map[string]any{
	"type":        "array",
	"description": "Ordered gesture trace: objects with x, y in [0,1] and t in ms",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "number"},
			"y": map[string]any{"type": "number"},
			"t": map[string]any{"type": "integer"},
		},
		"required": []string{"x", "y", "t"},
	},
}

// --- squiggle_extract ---

type extractReq struct {
	Points []squiggle.Point `json:"points"`
}

func registerExtractTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "squiggle_extract",
		Description: "Extract kinematic features (path length, speed, variance) from a gesture trace.",
		InputSchema: inputSchema(map[string]any{
			"points": pointsSchema,
		}, []string{"points"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*extractReq)
		return squiggle.Extract(r.Points)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

// --- color_classify ---

type classifyReq struct {
	Hex string `json:"hex"`
}

func registerClassifyTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "color_classify",
		Description: "Classify a hex color into its hue category, saturation and lightness.",
		InputSchema: inputSchema(map[string]any{
			"hex": map[string]any{"type": "string", "description": "Color like #FF8800"},
		}, []string{"hex"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*classifyReq)
		return palette.Classify(r.Hex)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r classifyReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

// --- prompt_compile ---

type compileReq struct {
	Intent   intent.Intent        `json:"intent"`
	Analysis intent.ImageAnalysis `json:"analysis"`
	ColorHex string               `json:"color_hex"`
	Points   []squiggle.Point     `json:"points"`
}

func registerCompileTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "prompt_compile",
		Description: "Compile an audio generation prompt from a structured intent, image analysis, color and gesture trace. Deterministic: identical input yields the identical prompt.",
		InputSchema: inputSchema(map[string]any{
			"intent":    map[string]any{"type": "object", "description": "Structured audio intent"},
			"analysis":  map[string]any{"type": "object", "description": "Image analysis"},
			"color_hex": map[string]any{"type": "string"},
			"points":    pointsSchema,
		}, []string{"intent", "analysis", "color_hex", "points"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*compileReq)
		if err := r.Intent.Validate(); err != nil {
			return nil, err
		}
		color, err := palette.Classify(r.ColorHex)
		if err != nil {
			return nil, err
		}
		feats, err := squiggle.Extract(r.Points)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"prompt": Compile(&r.Intent, color, r.Analysis, feats),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r compileReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}
