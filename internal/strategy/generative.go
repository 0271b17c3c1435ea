package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrInvalidModelOutput is returned when the model reply has no usable JSON.
var ErrInvalidModelOutput = errors.New("invalid model output")

// ContentGenerator is the part of the genai client the generative strategy
// needs. *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}

// Generative asks a generative model to read the document.
type Generative struct {
	Client ContentGenerator
	Model  string
}

// NewGenerative wraps client. An empty modelName means DefaultModel.
func NewGenerative(client ContentGenerator, modelName string) *Generative {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Generative{Client: client, Model: modelName}
}

// Name returns the strategy name.
func (g *Generative) Name() string { return "generative" }

// Extract sends the document to the model and decodes its JSON reply.
func (g *Generative) Extract(ctx context.Context, in Input) (model.Result, error) {
	contents, err := buildContents(in)
	if err != nil {
		return model.Result{}, err
	}

	resp, err := g.Client.GenerateContent(ctx, g.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return model.Result{}, fmt.Errorf("generating content: %w", err)
	}
	if resp == nil {
		return model.Result{}, fmt.Errorf("%w: empty response", ErrInvalidModelOutput)
	}
	return parseModelReply(resp.Text(), in.Mode)
}

func buildContents(in Input) ([]*genai.Content, error) {
	var parts []*genai.Part
	switch {
	case in.Pasted || ingest.IsTabular(in.Format) && in.Format != ingest.FormatXLSX && in.Format != ingest.FormatXLS:
		parts = []*genai.Part{genai.NewPartFromText(textPrompt(in.Mode, string(in.Data)))}
	case in.Format == ingest.FormatPDF || in.Format == ingest.FormatImage:
		parts = []*genai.Part{
			genai.NewPartFromText(documentPrompt(in.Mode)),
			genai.NewPartFromBytes(in.Data, mimeType(in)),
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, in.Format)
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

func mimeType(in Input) string {
	if in.Format == ingest.FormatPDF {
		return "application/pdf"
	}
	name := strings.ToLower(in.Filename)
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	}
	return "image/jpeg"
}

type modelReply struct {
	Transactions []modelTransaction     `json:"transactions"`
	Fields       []model.FieldDescriptor `json:"fields"`
}

type modelTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// parseModelReply pulls the outermost JSON object out of raw and converts
// it into a result for mode.
func parseModelReply(raw string, mode model.Mode) (model.Result, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return model.Result{}, fmt.Errorf("%w: no JSON object in reply", ErrInvalidModelOutput)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &keys); err != nil {
		return model.Result{}, fmt.Errorf("%w: %w", ErrInvalidModelOutput, err)
	}
	_, hasTxns := keys["transactions"]
	_, hasFields := keys["fields"]
	if !hasTxns && !hasFields {
		return model.Result{}, fmt.Errorf("%w: neither transactions nor fields present", ErrInvalidModelOutput)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(clean), &reply); err != nil {
		return model.Result{}, fmt.Errorf("%w: %w", ErrInvalidModelOutput, err)
	}

	if mode == model.General {
		fields := make([]model.FieldDescriptor, 0, len(reply.Fields))
		for _, f := range reply.Fields {
			if strings.TrimSpace(f.Label) == "" {
				continue
			}
			if f.Type == "" {
				f.Type = model.FieldText
			}
			fields = append(fields, f)
		}
		return model.Result{Mode: model.General, Fields: fields}, nil
	}

	txns := make([]model.Transaction, 0, len(reply.Transactions))
	for _, t := range reply.Transactions {
		if t.Amount.IsZero() {
			continue
		}
		desc := strings.TrimSpace(t.Description)
		if desc == "" {
			desc = "Unknown"
		}
		txns = append(txns, model.NewTransaction(t.Date, desc, t.Amount, nil, false))
	}
	return model.Result{
		Mode:         model.Reconciliation,
		Transactions: txns,
		RowCount:     len(reply.Transactions),
	}, nil
}

// cleanModelJSON strips Markdown fences and any prose around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
