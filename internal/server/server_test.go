package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/extract"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/strategy"
)

func testServer(opts Options) *Server {
	cfg := extract.DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }
	engine := extract.NewEngine(cfg, nil, nil)
	return New(strategy.NewDefaultChain(nil, engine, nil, ""), nil, opts)
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const statementCSV = "Bank export\nDate,Description,Amount\n2023-01-01,Coffee,-4.50\n2023-01-02,Salary,1000\n,Total,995.50\n"

func TestHealth(t *testing.T) {
	rec := serve(testServer(Options{Version: "1.2.3"}), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, rec.Body.String())
}

func TestExtract_Reconciliation(t *testing.T) {
	req := multipartRequest(t, "jan.csv", []byte(statementCSV), map[string]string{"mode": "reconciliation"})
	rec := serve(testServer(Options{}), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		RunID    string `json:"run_id"`
		Strategy string `json:"strategy"`
		Result   struct {
			Mode         string `json:"mode"`
			RowCount     int    `json:"rowCount"`
			Transactions []struct {
				Date        string          `json:"date"`
				Description string          `json:"description"`
				Amount      json.RawMessage `json:"amount"`
				Type        string          `json:"type"`
			} `json:"transactions"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "deterministic", out.Strategy)
	assert.Equal(t, "reconciliation", out.Result.Mode)
	assert.Equal(t, 3, out.Result.RowCount)
	require.Len(t, out.Result.Transactions, 2)
	assert.Equal(t, "Coffee", out.Result.Transactions[0].Description)
	assert.Equal(t, "-4.5", string(out.Result.Transactions[0].Amount))
	assert.Equal(t, "Withdrawal", out.Result.Transactions[0].Type)
}

func TestExtract_GeneralDefaultsFromSniffedContent(t *testing.T) {
	req := multipartRequest(t, "upload", []byte("Name,Email,Phone\nAda,a@x.io,555\n"), map[string]string{"mode": "GENERAL"})
	rec := serve(testServer(Options{}), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out strategy.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, model.General, out.Result.Mode)
	assert.Equal(t, []model.FieldDescriptor{
		{Label: "Name", Type: model.FieldText},
		{Label: "Email", Type: model.FieldText},
		{Label: "Phone", Type: model.FieldText},
	}, out.Result.Fields)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
		code   string
	}{
		{
			name: "bad mode",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "a.csv", []byte(statementCSV), map[string]string{"mode": "ledger"})
			},
			status: http.StatusBadRequest,
			code:   "unknown_mode",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "", nil, map[string]string{"mode": "general"})
			},
			status: http.StatusBadRequest,
			code:   "missing_file",
		},
		{
			name: "unknown format",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "a.csv", []byte(statementCSV), map[string]string{"format": "docx"})
			},
			status: http.StatusBadRequest,
			code:   "unknown_format",
		},
		{
			name: "header only",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "a.csv", []byte("Date,Description,Amount\n"), nil)
			},
			status: http.StatusUnprocessableEntity,
			code:   "empty_sheet",
		},
		{
			name: "pdf without a model",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "scan.pdf", []byte("%PDF-1.7"), nil)
			},
			status: http.StatusUnprocessableEntity,
			code:   "no_result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(testServer(Options{}), tt.req(t))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestExtract_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("a,b\n"), 1024)
	req := multipartRequest(t, "big.csv", big, nil)
	rec := serve(testServer(Options{MaxUploadBytes: 512}), req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "too_large", decodeError(t, rec).Code)
}

func TestPaste(t *testing.T) {
	body := `{"text": "Date\tDetails\tAmount\n2023-03-01\tRent\t-1200\n", "mode": "reconciliation"}`
	req := httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader(body))
	rec := serve(testServer(Options{}), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Result struct {
			Transactions []struct {
				Description string `json:"description"`
			} `json:"transactions"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Result.Transactions, 1)
	assert.Equal(t, "Rent", out.Result.Transactions[0].Description)
}

func TestPaste_Errors(t *testing.T) {
	s := testServer(Options{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_json", decodeError(t, rec).Code)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader(`{"text": "  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_text", decodeError(t, rec).Code)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader(`{"text": "a,b", "mode": "x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_mode", decodeError(t, rec).Code)
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, in strategy.Input) (strategy.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, in strategy.Input) (strategy.Outcome, error) {
	return f(ctx, in)
}

func TestPaste_PassesInputThrough(t *testing.T) {
	var got strategy.Input
	s := New(runnerFunc(func(_ context.Context, in strategy.Input) (strategy.Outcome, error) {
		got = in
		return strategy.Outcome{RunID: "r1", Strategy: "stub"}, nil
	}), nil, Options{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader(`{"text": "x y z", "mode": "general"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Pasted)
	assert.Equal(t, "text", got.Format)
	assert.Equal(t, model.General, got.Mode)
	assert.Equal(t, "x y z", string(got.Data))
}

func TestClassify(t *testing.T) {
	status, code := classify(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "timeout", code)

	status, code = classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- testServer(Options{}).Run(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_BadAddr(t *testing.T) {
	err := testServer(Options{}).Run(context.Background(), "256.0.0.1:bad")
	assert.Error(t, err)
}
