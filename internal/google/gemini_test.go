package google

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/genai"

	"meetsched/internal/apperr"
)

type fakeGenerator struct {
	resp      *genai.GenerateContentResponse
	err       error
	gotModel  string
	gotPrompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testGemini(gen *fakeGenerator, model string) *Gemini {
	return newGemini(slog.New(slog.NewTextHandler(io.Discard, nil)), gen, model)
}

func TestFirstText(t *testing.T) {
	text, ok := firstText(textResponse("Tuesday at 10:00 works."))
	if !ok || text != "Tuesday at 10:00 works." {
		t.Fatalf("unexpected result %q %v", text, ok)
	}

	for name, bad := range map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"nil candidate": {Candidates: []*genai.Candidate{nil}},
		"no content":    {Candidates: []*genai.Candidate{{}}},
		"no parts":      {Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
		"empty text":    textResponse(""),
	} {
		if _, ok := firstText(bad); ok {
			t.Fatalf("%s: expected missing text", name)
		}
	}
}

func TestGeminiSuggest(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("  Tuesday at 10:00 works.\n")}
	g := testGemini(gen, "models/gemini-2.0-flash")

	got, err := g.Suggest(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if got != "Tuesday at 10:00 works." {
		t.Fatalf("unexpected suggestion %q", got)
	}
	if gen.gotModel != "gemini-2.0-flash" || gen.gotPrompt != "prompt text" {
		t.Fatalf("unexpected call model=%q prompt=%q", gen.gotModel, gen.gotPrompt)
	}
	if testGemini(gen, "").model != DefaultModel {
		t.Fatal("expected default model")
	}
}

func TestGeminiUpstreamFailures(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"api error":      {err: genai.APIError{Code: 503, Message: "overloaded"}},
		"missing text":   {resp: &genai.GenerateContentResponse{}},
		"transport fail": {err: errors.New("dial tcp: timeout")},
	}
	for name, gen := range cases {
		if _, err := testGemini(gen, "").Suggest(context.Background(), "p"); !errors.Is(err, apperr.ErrUpstream) {
			t.Fatalf("%s: expected upstream error, got %v", name, err)
		}
	}
}

func TestGeminiExtractName(t *testing.T) {
	g := testGemini(&fakeGenerator{resp: textResponse(`"Alice Uwase".`)}, "")
	name, err := g.ExtractName(context.Background(), "Can I talk to Alice Uwase?")
	if err != nil || name != "Alice Uwase" {
		t.Fatalf("unexpected name %q err %v", name, err)
	}

	g = testGemini(&fakeGenerator{resp: textResponse("Name not found")}, "")
	name, err = g.ExtractName(context.Background(), "hello")
	if err != nil || name != "" {
		t.Fatalf("expected empty name, got %q err %v", name, err)
	}
}
