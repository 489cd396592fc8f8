// Package mcpserver exposes the conversion engine as an MCP tool so
// assistants can turn score scans into MusicXML over the streamable HTTP
// transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/debug"
	"github.com/rhuss/scoregate/pkg/transport"
)

// ToolName is the name of the conversion tool.
const ToolName = "convert_score"

// ConvertInput is the argument object of convert_score.
type ConvertInput struct {
	Filename      string `json:"filename" jsonschema:"original file name; the extension selects the input type (.pdf .png .jpg .jpeg)"`
	ContentBase64 string `json:"content_base64" jsonschema:"the image or PDF, standard base64 encoded"`
}

// ConvertOutput is the structured result of convert_score.
type ConvertOutput struct {
	MusicXML     string `json:"musicXml"`
	Note         string `json:"note,omitempty"`
	ConversionID string `json:"conversion_id,omitempty"`
}

// Options configures the MCP server.
type Options struct {
	Name    string
	Version string
}

// New builds an MCP server whose convert_score tool runs conv.
func New(conv transport.Converter, opts Options) *mcp.Server {
	if opts.Name == "" {
		opts.Name = "scoregate"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Convert a scanned music page (PDF, PNG or JPEG) to MusicXML using optical music recognition.",
	}, convertHandler(conv))

	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func convertHandler(conv transport.Converter) func(context.Context, *mcp.CallToolRequest, ConvertInput) (*mcp.CallToolResult, ConvertOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ConvertInput) (*mcp.CallToolResult, ConvertOutput, error) {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.ContentBase64))
		if err != nil {
			return nil, ConvertOutput{}, fmt.Errorf("content_base64 is not valid base64: %w", err)
		}
		if len(data) == 0 {
			return nil, ConvertOutput{}, fmt.Errorf("content_base64 is empty")
		}

		debug.Log("mcp", "convert_score called", "filename", in.Filename, "bytes", len(data))

		res, err := conv.Convert(ctx, &api.ConversionRequest{
			Filename: in.Filename,
			Size:     int64(len(data)),
			Body:     bytes.NewReader(data),
		})
		if err != nil {
			return nil, ConvertOutput{}, err
		}

		out := ConvertOutput{MusicXML: res.MusicXML, Note: res.Note, ConversionID: res.ID}
		if res.Degraded() {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: res.Note}},
			}, out, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.MusicXML}},
		}, out, nil
	}
}
