package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ensure this satisfies the interface
var _ Translator = (*OpenAIClient)(nil)

// OpenAIClient translates text chunks through an OpenAI chat completion
// model with a fixed translator system prompt.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a translation client. An empty model defaults to
// gpt-4o-mini.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		api:         openai.NewClient(apiKey),
		model:       model,
		temperature: 0.3,
	}
}

// Translate sends one chunk to the model. The chunk index is metadata only
// and never appears in the prompt. A recognizable refusal reply surfaces as
// RefusalError instead of being accepted as a translation. Whitespace-only
// chunks translate to the empty string without a remote call.
func (c *OpenAIClient) Translate(ctx context.Context, chunk Chunk, sourceLang, targetLang string) (Translated, error) {
	if strings.TrimSpace(chunk.Text) == "" {
		return Translated{Index: chunk.Index}, nil
	}

	system := fmt.Sprintf(
		"You are a professional translator. Translate the user's text from %s to %s accurately and naturally. Respond with only the translated text, no explanations.",
		languageName(sourceLang), languageName(targetLang))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: chunk.Text},
		},
	})
	if err != nil {
		return Translated{}, classifyTranslationError(err)
	}
	if len(resp.Choices) == 0 {
		return Translated{}, &RemoteError{Err: errors.New("response contained no choices")}
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if IsRefusal(reply) {
		return Translated{}, &RefusalError{Reply: reply}
	}

	slog.Debug("translated chunk",
		"index", chunk.Index,
		"sourceChars", len(chunk.Text),
		"translatedChars", len(reply))

	return Translated{Index: chunk.Index, Text: reply}, nil
}

func classifyTranslationError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	return &RemoteError{Err: err}
}

// refusalPrefixes are apology-style openings the model uses when it declines
// to translate. A refusal is textually indistinguishable from a translation
// otherwise, so callers must pattern-match rather than trust the reply.
var refusalPrefixes = []string{
	"i'm sorry",
	"i am sorry",
	"i apologize",
	"i apologise",
	"sorry, ",
	"i cannot",
	"i can't",
	"i won't",
	"i will not",
	"as an ai",
	"unfortunately, i cannot",
	"unfortunately, i can't",
}

// IsRefusal reports whether a model reply looks like a refusal rather than
// a translation. An empty reply is not a refusal; empty translations are
// valid results.
func IsRefusal(reply string) bool {
	t := strings.ToLower(strings.TrimSpace(reply))
	if t == "" {
		return false
	}
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

var languageNames = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"ru": "Russian",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
