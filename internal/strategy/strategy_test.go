package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cleared-dev/recon/internal/extract"
	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
)

// fakeGenerator records the request and replies with a canned text.
type fakeGenerator struct {
	reply    string
	err      error
	calls    int
	model    string
	contents []*genai.Content
}

func (f *fakeGenerator) GenerateContent(_ context.Context, modelName string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = modelName
	f.contents = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

const txnReply = "```json\n{\"transactions\": [" +
	"{\"date\": \"2024-01-02\", \"description\": \"Rent\", \"amount\": -1200, \"type\": \"Deposit\"}," +
	"{\"date\": \"2024-01-03\", \"description\": \"\", \"amount\": 50.5, \"type\": \"Deposit\"}," +
	"{\"date\": \"2024-01-04\", \"description\": \"Nothing\", \"amount\": 0, \"type\": \"Deposit\"}" +
	"]}\n```"

func engine() *extract.Engine {
	return extract.NewEngine(extract.DefaultConfig(), nil, nil)
}

func TestDeterministic_Extract(t *testing.T) {
	d := NewDeterministic(engine())
	res, err := d.Extract(context.Background(), Input{
		Data:   []byte("Date,Memo,Amount\n2023-01-01,Coffee,-4.50\n"),
		Format: ingest.FormatCSV,
		Mode:   model.Reconciliation,
	})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "deterministic", d.Name())
}

func TestDeterministic_RejectsDocuments(t *testing.T) {
	_, err := NewDeterministic(engine()).Extract(context.Background(), Input{Format: ingest.FormatPDF, Mode: model.Reconciliation})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDeterministic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDeterministic(engine()).Extract(ctx, Input{Format: ingest.FormatCSV, Mode: model.General})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerative_PastedTextReconciliation(t *testing.T) {
	fake := &fakeGenerator{reply: txnReply}
	g := NewGenerative(fake, "")

	res, err := g.Extract(context.Background(), Input{
		Data:   []byte("Jan 2 rent 1200 out"),
		Format: ingest.FormatText,
		Mode:   model.Reconciliation,
		Pasted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, fake.model)
	require.Len(t, fake.contents, 1)
	require.Len(t, fake.contents[0].Parts, 1)
	assert.Contains(t, fake.contents[0].Parts[0].Text, "Jan 2 rent 1200 out")
	assert.Contains(t, fake.contents[0].Parts[0].Text, "copy-pasted table")

	assert.Equal(t, 3, res.RowCount)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "Rent", res.Transactions[0].Description)
	assert.Equal(t, model.Withdrawal, res.Transactions[0].Type)
	assert.Equal(t, "-1200", res.Transactions[0].Amount.String())
	assert.Equal(t, "Unknown", res.Transactions[1].Description)
	assert.Equal(t, model.Deposit, res.Transactions[1].Type)
}

func TestGenerative_PDFInlineData(t *testing.T) {
	fake := &fakeGenerator{reply: `Sure! {"fields": [{"label": "Business name"}, {"label": "Entity", "type": "select", "options": ["LLC", "S-Corp"]}, {"label": " "}]} Hope that helps.`}
	g := NewGenerative(fake, "gemini-test")

	res, err := g.Extract(context.Background(), Input{
		Data:     []byte("%PDF-1.7"),
		Format:   ingest.FormatPDF,
		Mode:     model.General,
		Filename: "intake.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", fake.model)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "fields for a survey")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "application/pdf", parts[1].InlineData.MIMEType)

	assert.Equal(t, []model.FieldDescriptor{
		{Label: "Business name", Type: model.FieldText},
		{Label: "Entity", Type: model.FieldSelect, Options: []string{"LLC", "S-Corp"}},
	}, res.Fields)
}

func TestGenerative_ImageMIME(t *testing.T) {
	assert.Equal(t, "image/png", mimeType(Input{Format: ingest.FormatImage, Filename: "a.PNG"}))
	assert.Equal(t, "image/jpeg", mimeType(Input{Format: ingest.FormatImage, Filename: "a.jpg"}))
}

func TestGenerative_RejectsBinarySpreadsheets(t *testing.T) {
	fake := &fakeGenerator{reply: txnReply}
	_, err := NewGenerative(fake, "").Extract(context.Background(), Input{Format: ingest.FormatXLSX, Mode: model.Reconciliation})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Zero(t, fake.calls)
}

func TestGenerative_ClientError(t *testing.T) {
	fake := &fakeGenerator{err: errors.New("quota exceeded")}
	_, err := NewGenerative(fake, "").Extract(context.Background(), Input{Format: ingest.FormatText, Mode: model.Reconciliation, Pasted: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestParseModelReply_Invalid(t *testing.T) {
	_, err := parseModelReply("no json here", model.Reconciliation)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)

	_, err = parseModelReply(`{"rows": []}`, model.Reconciliation)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)

	_, err = parseModelReply(`{"transactions": [}`, model.Reconciliation)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, cleanModelJSON(`Here you go: {"a":{"b":2}} thanks`))
	assert.Equal(t, "", cleanModelJSON("nothing"))
}

// stubStrategy returns a fixed result or error.
type stubStrategy struct {
	name  string
	res   model.Result
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(context.Context, Input) (model.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubStrategy{name: "a", res: model.Result{Mode: model.General, Fields: []model.FieldDescriptor{{Label: "x", Type: model.FieldText}}}}
	second := &stubStrategy{name: "b"}

	out, err := NewChain(nil, first, second).Run(context.Background(), Input{Mode: model.General})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Strategy)
	assert.NotEmpty(t, out.RunID)
	assert.Zero(t, second.calls)
}

func TestChain_FallsBackOnErrorAndEmpty(t *testing.T) {
	failing := &stubStrategy{name: "a", err: extract.ErrEmptySheet}
	empty := &stubStrategy{name: "b", res: model.Result{Mode: model.Reconciliation, RowCount: 4}}
	good := &stubStrategy{name: "c", res: model.Result{
		Mode:         model.Reconciliation,
		Transactions: []model.Transaction{{Description: "x"}},
	}}

	out, err := NewChain(nil, failing, empty, good).Run(context.Background(), Input{Mode: model.Reconciliation})
	require.NoError(t, err)
	assert.Equal(t, "c", out.Strategy)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestChain_AllFail(t *testing.T) {
	a := &stubStrategy{name: "a", err: extract.ErrEmptySheet}
	b := &stubStrategy{name: "b", err: ErrInvalidModelOutput}

	out, err := NewChain(nil, a, b).Run(context.Background(), Input{Mode: model.Reconciliation})
	assert.ErrorIs(t, err, ErrNoStrategySucceeded)
	assert.ErrorIs(t, err, extract.ErrEmptySheet)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
	assert.NotEmpty(t, out.RunID)
}

func TestChain_KeepsEmptyResultOnFailure(t *testing.T) {
	empty := &stubStrategy{name: "a", res: model.Result{Mode: model.Reconciliation, RowCount: 4}}
	failing := &stubStrategy{name: "b", err: ErrInvalidModelOutput}

	out, err := NewChain(nil, empty, failing).Run(context.Background(), Input{Mode: model.Reconciliation})
	assert.ErrorIs(t, err, ErrNoStrategySucceeded)
	assert.Equal(t, "a", out.Strategy)
	assert.Equal(t, 4, out.Result.RowCount)
	assert.NotEmpty(t, out.RunID)
}

func TestDefaultChain_AllRowsFilteredKeepsRowCount(t *testing.T) {
	out, err := NewDefaultChain(nil, engine(), nil, "").Run(context.Background(), Input{
		Data:   []byte("Date,Description,Amount\n01/01/2024,Opening Balance,100\n01/02/2024,Zero,0\n"),
		Format: ingest.FormatCSV,
		Mode:   model.Reconciliation,
	})
	assert.ErrorIs(t, err, ErrNoStrategySucceeded)
	assert.Equal(t, "deterministic", out.Strategy)
	assert.Equal(t, 2, out.Result.RowCount)
	assert.Empty(t, out.Result.Transactions)
}

func TestChain_UnknownMode(t *testing.T) {
	_, err := NewChain(nil).Run(context.Background(), Input{Mode: "other"})
	assert.ErrorIs(t, err, model.ErrUnknownMode)
}

func TestDefaultChain_PasteFallsBackToModel(t *testing.T) {
	fake := &fakeGenerator{reply: txnReply}
	chain := NewDefaultChain(nil, engine(), fake, "")
	require.Len(t, chain.Strategies, 2)

	out, err := chain.Run(context.Background(), Input{
		Data:   []byte("paid rent yesterday, twelve hundred"),
		Format: ingest.FormatText,
		Mode:   model.Reconciliation,
		Pasted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "generative", out.Strategy)
	assert.Equal(t, 1, fake.calls)
}

func TestDefaultChain_DeterministicOnly(t *testing.T) {
	chain := NewDefaultChain(nil, engine(), nil, "")
	assert.Len(t, chain.Strategies, 1)
}
