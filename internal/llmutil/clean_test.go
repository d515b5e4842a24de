package llmutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON_ValidInputIsUntouched(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"object", `{"answers":[{"confidence":0.9}]}`},
		{"array", `[1,2,3]`},
		{"url in string", `{"href":"https://example.com/a?b=1"}`},
		{"escaped quote", `{"text":"say \"hi\""}`},
		{"escaped newline", `{"text":"line1\nline2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.in, CleanJSON(tt.in))
		})
	}
}

func TestCleanJSON_Idempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"a\": 1,}\n```",
		"Here you go:\n{\"a\": \"b\"} hope that helps!",
		`{"a": // comment
			1}`,
		"{\"rationale\": \"first line\nsecond line\"}",
	}
	for _, in := range inputs {
		once := CleanJSON(in)
		twice := CleanJSON(once)
		assert.Equal(t, once, twice, "CleanJSON must be a no-op on its own output: %q", in)
	}
}

func TestCleanJSON_MarkdownFenceWithTrailingComma(t *testing.T) {
	in := "```json\n{\"answers\": [{\"type\": \"css\", \"selector\": \"#a\"},],}\n```"

	out := CleanJSON(in)
	require.True(t, json.Valid([]byte(out)), "got: %s", out)

	var v struct {
		Answers []map[string]string `json:"answers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v.Answers, 1)
	assert.Equal(t, "#a", v.Answers[0]["selector"])
}

func TestCleanJSON_StripsComments(t *testing.T) {
	in := `{
		// the best match
		"type": "testid", /* stable */ "value": "save"
	}`

	out := CleanJSON(in)
	require.True(t, json.Valid([]byte(out)), "got: %s", out)
	assert.NotContains(t, out, "//")
	assert.NotContains(t, out, "/*")
}

func TestCleanJSON_CommentMarkersInsideStringsSurvive(t *testing.T) {
	in := `{"href":"https://x.test/path","note":"a /* not a comment */ b"}`
	assert.Equal(t, in, CleanJSON(in))
}

func TestCleanJSON_ExtractsObjectFromProse(t *testing.T) {
	in := "Sure! Based on the candidates, the answer is:\n{\"type\": \"role\", \"role\": \"button\"}\nLet me know if you need anything else."

	out := CleanJSON(in)
	require.True(t, json.Valid([]byte(out)), "got: %s", out)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "button", v["role"])
}

func TestCleanJSON_EscapesBareNewlinesInStrings(t *testing.T) {
	in := "{\"reason\": \"line one\nline two\tend\"}"

	out := CleanJSON(in)
	require.True(t, json.Valid([]byte(out)), "got: %s", out)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "line one\nline two\tend", v["reason"])
}

func TestCleanJSON_UnsalvageableStaysInvalid(t *testing.T) {
	out := CleanJSON("no json here at all")
	assert.False(t, json.Valid([]byte(out)))
}

func TestParseJSON_RoundTrip(t *testing.T) {
	type plan struct {
		Answers []struct {
			Type string `json:"type"`
		} `json:"answers"`
	}

	got, err := ParseJSON[plan]("```json\n{\"answers\":[{\"type\":\"css\"},]}\n```")
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, "css", got.Answers[0].Type)
}

func TestParseJSON_ErrorIncludesSnippet(t *testing.T) {
	_, err := ParseJSON[map[string]int]("total garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garbage")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}

// FuzzCleanJSONContract checks the decoder's core contract: trimmed valid
// JSON passes through verbatim, and any valid output is a fixpoint.
func FuzzCleanJSONContract(f *testing.F) {
	f.Add(`{"a":1}`)
	f.Add("```json\n{\"a\": [1, 2,],}\n```")
	f.Add("prose {\"k\": \"v\\n\"} prose")
	f.Add(`{"s": "un` + "\n" + `escaped"}`)

	f.Fuzz(func(t *testing.T, in string) {
		trimmed := strings.TrimSpace(in)
		out := CleanJSON(in)
		if json.Valid([]byte(trimmed)) && out != trimmed {
			t.Fatalf("valid JSON was modified:\n in: %q\n out: %q", trimmed, out)
		}
		if json.Valid([]byte(out)) && CleanJSON(out) != out {
			t.Fatalf("valid output is not a fixpoint: %q", out)
		}
	})
}
