package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type apiCall struct {
	Method   string
	Path     string
	RawQuery string
	Body     string
}

type fakeFirefly struct {
	mu     sync.Mutex
	calls  []apiCall
	status map[string]int
	bodies map[string]string
}

func newFakeFirefly(t *testing.T) (*httptest.Server, *fakeFirefly) {
	t.Helper()
	f := &fakeFirefly{status: map[string]int{}, bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, apiCall{Method: r.Method, Path: r.URL.EscapedPath(), RawQuery: r.URL.RawQuery, Body: string(body)})
		status, ok := f.status[r.URL.Path]
		if !ok {
			status = http.StatusOK
		}
		resp, ok := f.bodies[r.URL.Path]
		if !ok {
			resp = `{"data":[{"id":"1"}]}`
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, f
}

func (f *fakeFirefly) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

// setEnv points the CLI at srv with a clean environment and a temp ledger.
func setEnv(t *testing.T, srvURL string) string {
	t.Helper()
	dir := t.TempDir()
	vars := map[string]string{
		"FIREFLY_URL":                 srvURL,
		"FIREFLY_TOKEN":               "test-token",
		"LOG_LEVEL":                   "error",
		"LOG_FORMAT":                  "text",
		"SQLITE_DB_PATH":              filepath.Join(dir, "ledger.db"),
		"AMQP_URL":                    "",
		"IMPORT_SOURCE_ACCOUNT":       "Checking",
		"IMPORT_CURRENCY":             "",
		"GOOGLE_SERVICE_ACCOUNT_FILE": "",
		"SYNC_BATCH_SIZE":             "",
		"SYNC_INTERVAL":               "",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVersionNeedsNoConfig(t *testing.T) {
	t.Setenv("FIREFLY_URL", "")
	out, _, err := execute(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "fireflyctl dev\n" {
		t.Errorf("output = %q", out)
	}
}

func TestMissingConfigFails(t *testing.T) {
	srv, _ := newFakeFirefly(t)
	dir := setEnv(t, srv.URL)
	t.Setenv("FIREFLY_TOKEN", "")

	_, _, err := execute(t, dir, "accounts", "list")
	if err == nil || !strings.Contains(err.Error(), "FIREFLY_TOKEN is required") {
		t.Fatalf("error = %v", err)
	}
}

func TestEnvFileIsLoaded(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	dir := setEnv(t, srv.URL)
	os.Unsetenv("FIREFLY_URL")
	os.Unsetenv("FIREFLY_TOKEN")
	envFile := writeFile(t, dir, "test.env", "FIREFLY_URL="+srv.URL+"\nFIREFLY_TOKEN=from-file\n")

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--env-file", envFile, "currencies", "list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls := ff.recorded(); len(calls) != 1 || calls[0].Path != "/api/v1/currencies" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestResourceCommands(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantVerb  string
		wantPath  string
		wantQuery string
		wantBody  string
	}{
		{"accounts list", []string{"accounts", "list"}, http.MethodGet, "/api/v1/accounts", "", ""},
		{
			"accounts create", []string{"accounts", "create", "--name", "Wallet", "--role", "cashWalletAsset"},
			http.MethodPost, "/api/v1/accounts", "", `{"name":"Wallet","type":"asset","account_role":"cashWalletAsset"}`,
		},
		{
			"accounts create liability", []string{"accounts", "create", "--name", "Loan", "--type", "liability", "--opening-balance", "-500.25"},
			http.MethodPost, "/api/v1/accounts", "", `{"name":"Loan","type":"liability","opening_balance":"-500.25"}`,
		},
		{"currencies list", []string{"currencies", "list"}, http.MethodGet, "/api/v1/currencies", "", ""},
		{"currencies enable", []string{"currencies", "enable", "rmb"}, http.MethodPost, "/api/v1/currencies/RMB/enable", "", ""},
		{"currencies disable", []string{"currencies", "disable", "USD"}, http.MethodPost, "/api/v1/currencies/USD/disable", "", ""},
		{"currencies default", []string{"currencies", "default", "EUR"}, http.MethodPost, "/api/v1/currencies/EUR/default", "", ""},
		{"transactions list", []string{"transactions", "list"}, http.MethodGet, "/api/v1/transactions", "", ""},
		{
			"data destroy", []string{"data", "destroy", "--objects", "transfers", "--yes"},
			http.MethodDelete, "/api/v1/data/destroy", "objects=transfers", "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ff := newFakeFirefly(t)
			dir := setEnv(t, srv.URL)

			out, _, err := execute(t, dir, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}

			calls := ff.recorded()
			if len(calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(calls))
			}
			got := calls[0]
			if got.Method != tt.wantVerb || got.Path != tt.wantPath || got.RawQuery != tt.wantQuery {
				t.Errorf("request = %s %s?%s, want %s %s?%s", got.Method, got.Path, got.RawQuery, tt.wantVerb, tt.wantPath, tt.wantQuery)
			}
			if got.Body != tt.wantBody {
				t.Errorf("body = %s\nwant   %s", got.Body, tt.wantBody)
			}

			var doc map[string]any
			if err := json.Unmarshal([]byte(out), &doc); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out)
			}
			if _, ok := doc["data"]; !ok {
				t.Errorf("output = %s", out)
			}
		})
	}
}

func TestCommandsRejectBadInputWithoutCalling(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown account type", []string{"accounts", "create", "--name", "x", "--type", "savings"}, `invalid account type "savings"`},
		{"missing name", []string{"accounts", "create"}, `required flag(s) "name" not set`},
		{"bad opening balance", []string{"accounts", "create", "--name", "x", "--opening-balance", "lots"}, "invalid opening balance"},
		{"destroy unconfirmed", []string{"data", "destroy", "--objects", "accounts"}, "destroy not confirmed"},
		{"destroy unknown objects", []string{"data", "destroy", "--objects", "everything", "--yes"}, `invalid destroy type "everything"`},
		{"currency without code", []string{"currencies", "enable"}, "accepts 1 arg(s)"},
		{"bad output format", []string{"-o", "xml", "accounts", "list"}, "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ff := newFakeFirefly(t)
			dir := setEnv(t, srv.URL)

			_, _, err := execute(t, dir, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
			}
			// bad output format fails after the call
			if tt.name != "bad output format" && len(ff.recorded()) != 0 {
				t.Errorf("no request expected, got %+v", ff.recorded())
			}
		})
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	ff.status["/api/v1/accounts"] = http.StatusUnauthorized
	ff.bodies["/api/v1/accounts"] = `{"message":"Unauthenticated."}`
	dir := setEnv(t, srv.URL)

	_, _, err := execute(t, dir, "accounts", "list")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("error = %v", err)
	}
}

func TestTransactionsStoreFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "tx.json",
			content: `{"apply_rules":true,"transactions":[{"type":"withdrawal","date":"2024-03-01T00:00:00Z",` +
				`"source_name":"Checking","destination_name":"Bakery","amount":"4.20","description":"bread"}]}`,
		},
		{
			name: "yaml",
			file: "tx.yaml",
			content: `apply_rules: true
transactions:
  - type: withdrawal
    date: 2024-03-01T00:00:00Z
    source_name: Checking
    destination_name: Bakery
    amount: "4.20"
    description: bread
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ff := newFakeFirefly(t)
			dir := setEnv(t, srv.URL)
			path := writeFile(t, dir, tt.file, tt.content)

			if _, _, err := execute(t, dir, "transactions", "store", "--file", path); err != nil {
				t.Fatalf("execute: %v", err)
			}

			calls := ff.recorded()
			if len(calls) != 1 || calls[0].Method != http.MethodPost || calls[0].Path != "/api/v1/transactions" {
				t.Fatalf("calls = %+v", calls)
			}
			want := `{"error_if_duplicate_hash":false,"apply_rules":true,"fire_webhooks":false,"transactions":[` +
				`{"type":"withdrawal","date":"2024-03-01T00:00:00Z","source_name":"Checking","destination_name":"Bakery","amount":"4.2","description":"bread"}]}`
			if calls[0].Body != want {
				t.Errorf("body = %s\nwant   %s", calls[0].Body, want)
			}
		})
	}
}

func TestTransactionsStoreRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown type", "bad.json", `{"transactions":[{"type":"refund"}]}`, "invalid transaction type"},
		{"unknown type in yaml", "bad.yaml", "transactions:\n  - type: refund\n", "invalid transaction type"},
		{"empty", "empty.json", `{"transactions":[]}`, "no transactions"},
		{"not json", "broken.json", `{`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ff := newFakeFirefly(t)
			dir := setEnv(t, srv.URL)
			path := writeFile(t, dir, tt.file, tt.content)

			_, _, err := execute(t, dir, "transactions", "store", "--file", path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
			if len(ff.recorded()) != 0 {
				t.Error("no request expected")
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	ff.bodies["/api/v1/accounts"] = `{"data":[{"id":"1","attributes":{"name":"Checking"}}]}`
	ff.bodies["/api/v1/currencies"] = `{"data":[{"id":"2","attributes":{"code":"EUR"}}]}`
	ff.bodies["/api/v1/transactions"] = `{"data":[]}`
	dir := setEnv(t, srv.URL)

	out, _, err := execute(t, dir, "snapshot", "--format", "yaml")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"accounts:", "currencies:", "transactions:", "name: Checking", "code: EUR"} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q:\n%s", want, out)
		}
	}
	if got := len(ff.recorded()); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestSnapshotFailsWhenOneListingFails(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	ff.status["/api/v1/currencies"] = http.StatusInternalServerError
	dir := setEnv(t, srv.URL)

	_, _, err := execute(t, dir, "snapshot")
	if err == nil || !strings.Contains(err.Error(), "currencies") {
		t.Fatalf("error = %v", err)
	}
}

const expensesJSON = `[
  {"date":"2024-03-01","description":"bread","amount":"4.50","category":"Groceries"},
  {"date":"2024-03-02","description":"bus","amount":11,"category":"Transport"}
]`

func TestImportFromFile(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	dir := setEnv(t, srv.URL)
	path := writeFile(t, dir, "expenses.json", expensesJSON)

	out, stderr, err := execute(t, dir, "import", "--from", "file", "--file", path)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, stderr)
	}
	if !strings.Contains(out, "Expenses: 2  Total: 15.50") {
		t.Errorf("summary = %q", out)
	}
	if !strings.Contains(stderr, "2 stored") {
		t.Errorf("stderr = %q", stderr)
	}

	calls := ff.recorded()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Path != "/api/v1/transactions" || !strings.Contains(c.Body, `"source_name":"Checking"`) {
			t.Errorf("call = %+v", c)
		}
	}

	// The ledger remembers both expenses.
	_, stderr, err = execute(t, dir, "import", "--from", "file", "--file", path)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !strings.Contains(stderr, "2 already imported") {
		t.Errorf("stderr = %q", stderr)
	}
	if got := len(ff.recorded()); got != 2 {
		t.Errorf("calls after re-import = %d, want 2", got)
	}
}

func TestImportDryRunSendsNothing(t *testing.T) {
	srv, ff := newFakeFirefly(t)
	dir := setEnv(t, srv.URL)
	path := writeFile(t, dir, "expenses.json", expensesJSON)

	out, _, err := execute(t, dir, "import", "--file", path, "--dry-run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Transport") || !strings.Contains(out, "11.00") {
		t.Errorf("summary = %q", out)
	}
	if len(ff.recorded()) != 0 {
		t.Error("dry run must not call Firefly III")
	}
	if _, err := os.Stat(filepath.Join(dir, "ledger.db")); !os.IsNotExist(err) {
		t.Error("dry run must not create the ledger")
	}
}

func TestImportRejectsBadSource(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown source", []string{"import", "--from", "csv"}, "unknown source"},
		{"file without path", []string{"import", "--from", "file"}, "needs --file"},
		{"sheet without config", []string{"import", "--from", "sheet"}, "GOOGLE_SPREADSHEET_ID is required"},
		{"queue without amqp", []string{"import", "--queue", "--file", "expenses.json"}, "needs AMQP_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFakeFirefly(t)
			dir := setEnv(t, srv.URL)
			t.Setenv("GOOGLE_SPREADSHEET_ID", "")
			t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
			writeFile(t, dir, "expenses.json", expensesJSON)
			args := tt.args
			for i, a := range args {
				if a == "expenses.json" {
					args[i] = filepath.Join(dir, a)
				}
			}

			_, _, err := execute(t, dir, args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
