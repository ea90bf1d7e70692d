package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

const sampleText = "The operator shall file a report."

// samplePrediction tags "operator shall file a report" as one Obligations span.
const samplePrediction = `{
  "id2label": {"0": "O", "1": "B-Obligations", "2": "I-Obligations"},
  "chunks": [{
    "offsets":   [[0,0],[0,3],[4,12],[13,18],[19,23],[24,25],[26,32],[32,33],[0,0]],
    "label_ids": [0,0,1,2,2,2,2,0,0],
    "probs": [[1,0,0],[0.9,0.05,0.05],[0.1,0.8,0.1],[0.1,0.1,0.8],[0.1,0.1,0.8],[0.1,0.1,0.8],[0.1,0.1,0.8],[0.9,0.05,0.05],[1,0,0]]
  }]
}`

var testBuild = BuildInfo{Version: "1.2.3", Commit: "abc123", BuildDate: "2026-01-01"}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand(testBuild)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand(testBuild)
	assert.Equal(t, "clauselens", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"profile", "refine", "job", "search", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	for _, flag := range []string{"config", "log-level", "output", "no-color", "timeout", "server"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc123")

	out, _, err = runCLI(t, "", "version", "-o", "json")
	require.NoError(t, err)
	var got BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testBuild, got)
}

func TestGlobalFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad output", []string{"-o", "xml", "version"}},
		{"bad log level", []string{"--log-level", "loud", "version"}},
		{"missing config file", []string{"-c", "/nonexistent/clauselens.yaml", "config", "show"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestProfile_Predictions(t *testing.T) {
	pred := writeFile(t, "pred.json", samplePrediction)
	doc := writeFile(t, "doc.txt", sampleText)

	out, _, err := runCLI(t, "", "-o", "json", "profile", doc, "--predictions", pred)
	require.NoError(t, err)

	var p profile.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, "Obligations", p.Clauses[0].Category)
	assert.Equal(t, 1, p.Topics.Get("Obligations"))
	assert.Equal(t, len(sampleText), p.Meta.Quality.TextLength)
}

func TestProfile_PredictionsFromStdinWithRefine(t *testing.T) {
	pred := writeFile(t, "pred.json", samplePrediction)

	out, _, err := runCLI(t, sampleText, "-o", "json", "profile", "-", "--predictions", pred, "--refine")
	require.NoError(t, err)

	var got profileOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Profile)
	require.NotNil(t, got.Refined)
	assert.NotEmpty(t, got.Refined.Bucket(profile.BucketObligations))
}

func TestProfile_TextOutput(t *testing.T) {
	pred := writeFile(t, "pred.json", samplePrediction)

	out, _, err := runCLI(t, sampleText, "profile", "--predictions", pred, "--refine")
	require.NoError(t, err)
	assert.Contains(t, out, "Document type:")
	assert.Contains(t, out, "Obligations")
	assert.Contains(t, out, "obligations (1)")
}

func TestProfile_BadPredictions(t *testing.T) {
	pred := writeFile(t, "pred.json", `{"chunks":[]}`)
	_, _, err := runCLI(t, sampleText, "profile", "--predictions", pred)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInputShape))

	_, _, err = runCLI(t, sampleText, "profile", "--predictions", "/nonexistent.json")
	assert.Error(t, err)
}

func TestRefine_Local(t *testing.T) {
	p := profile.Profile{
		DocumentType: "Regulation",
		Clauses: []profile.Clause{
			{Section: "Obligations", Category: "Obligations", Text: "The operator shall file a report.", Confidence: 0.9},
		},
		Meta: profile.Meta{Model: "m"},
	}
	in, err := json.Marshal(p)
	require.NoError(t, err)

	out, _, err := runCLI(t, string(in), "-o", "json", "refine")
	require.NoError(t, err)

	var r profile.RefinedProfile
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "Regulation", r.DocumentType)
	assert.NotEmpty(t, r.Bucket(profile.BucketObligations))
}

func TestRefine_BadInput(t *testing.T) {
	_, _, err := runCLI(t, "", "refine")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoUsableInput))

	_, _, err = runCLI(t, "{not json", "refine")
	assert.Error(t, err)
}

func TestProfile_Server(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/profile", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("refine"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profile":{"document_type":"Act","jurisdiction":null,"meta":{"model":"remote"}},"refined":{"document_type":"Act"}}`))
	}))
	defer srv.Close()

	out, _, err := runCLI(t, sampleText, "--server", srv.URL, "profile", "--refine", "--max-len", "256")
	require.NoError(t, err)
	assert.Equal(t, sampleText, got["text"])
	assert.EqualValues(t, 256, got["max_len"])
	assert.Contains(t, out, "Act")
	assert.Contains(t, out, "refined")
}

func TestJobCommands_NeedServer(t *testing.T) {
	for _, args := range [][]string{{"job", "get", "j1"}, {"search", "fine"}} {
		_, _, err := runCLI(t, "", args...)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest), "args %v", args)
	}
}

func TestJobSubmitAndGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"job_id":"j1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/j1":
			_, _ = w.Write([]byte(`{"job_id":"j1","status":"completed","attempts":1,
				"result":{"job_id":"j1","refined":{"document_type":"Act","obligations":["File reports."]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"JOB_001","message":"job not found"}`))
		}
	}))
	defer srv.Close()

	out, _, err := runCLI(t, sampleText, "--server", srv.URL, "job", "submit")
	require.NoError(t, err)
	assert.Equal(t, "j1 queued\n", out)

	out, _, err = runCLI(t, "", "--server", srv.URL, "job", "get", "j1")
	require.NoError(t, err)
	assert.Contains(t, out, "Job j1: completed")
	assert.Contains(t, out, "File reports.")

	_, _, err = runCLI(t, "", "--server", srv.URL, "job", "get", "missing")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/clauses/search", r.URL.Path)
		assert.Equal(t, "penalties", r.URL.Query().Get("bucket"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":1,"hits":[{"id":"j1-penalties-0","job_id":"j1","bucket":"penalties","text":"A fine applies.","score":1.5}]}`))
	}))
	defer srv.Close()

	out, _, err := runCLI(t, "", "--server", srv.URL, "search", "fine", "--bucket", "penalties")
	require.NoError(t, err)
	assert.Contains(t, out, "1 matches")
	assert.Contains(t, out, "A fine applies.")
	assert.Contains(t, out, "1.50")

	_, _, err = runCLI(t, "", "--server", srv.URL, "search", "fine", "--bucket", "nope")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "clauselens.yaml")

	out, _, err := runCLI(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultYAML, string(data))

	_, _, err = runCLI(t, "", "config", "init", path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	_, _, err = runCLI(t, "", "config", "init", path, "--force")
	require.NoError(t, err)

	out, _, err = runCLI(t, "", "-c", path, "-o", "json", "config", "show")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.NotZero(t, cfg.Inference.MaxLen)
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"A", "LONGER"}, [][]string{{"xyz", "1"}, {"q"}})
	assert.Equal(t, "  A    LONGER\n  ---  ------\n  xyz  1\n  q    \n", got)
	assert.Empty(t, FormatTable(nil, nil))
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abc", padRight("abc", 2))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("  a \n b "))
	long := strings.Repeat("x", previewRunes+10)
	assert.Equal(t, previewRunes, len([]rune(preview(long))))
}
