package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Chat Prompts (minutes question answering)
// ============================================================================

// ChatSystemPrompt restricts answers to the retrieved excerpts of the minutes.
// 議事録の参考情報のみに基づいて回答させる
const ChatSystemPrompt = `あなたは議事録の内容に基づいて質問に答えるAIアシスタントです。
以下のルールに従って回答してください：

1. 提供された議事録の参考情報のみを基に回答してください
2. 参考情報にない内容は推測や補足をしないでください
3. 回答は簡潔で分かりやすく、日本語で行ってください`

// ChatUserPromptTemplate wraps the question and the numbered excerpts.
// Placeholders: question, excerpts.
const ChatUserPromptTemplate = `質問: %s

参考情報:
%s

上記の参考情報に基づいて、質問に答えてください。`

// NoMatchMessage is the assistant reply when no excerpt is similar enough to
// the question.
const NoMatchMessage = "申し訳ありません。ご質問に関連する内容が議事録の中に見つかりませんでした。質問の表現を変えて、もう一度お試しください。"

// ReferenceLabel formats the label of the excerpt ranked rank.
func ReferenceLabel(rank int) string {
	return fmt.Sprintf("[参考情報%d]", rank)
}

// Excerpt is one retrieved chunk passed to the prompt builders.
type Excerpt struct {
	Rank    int
	Content string
}

// JoinExcerpts renders excerpts as labelled paragraphs separated by a blank
// line. The same text serves as grounding context and as the reply used when
// generation fails.
func JoinExcerpts(excerpts []Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		parts = append(parts, ReferenceLabel(e.Rank)+" "+e.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildChatUserPrompt builds the user turn for a grounded answer.
func BuildChatUserPrompt(question string, excerpts []Excerpt) string {
	return fmt.Sprintf(ChatUserPromptTemplate, question, JoinExcerpts(excerpts))
}

// ============================================================================
// Summary Prompts
// ============================================================================

// SummarySystemPrompt asks for a markdown summary that keeps every key point.
const SummarySystemPrompt = "あなたは会議の議事録を要約する専門家です。与えられた文字起こし文章を、重要なポイントを漏らさず、簡潔にマークダウン記法で要約してください。"

// SummaryUserPromptTemplate wraps the transcript. Placeholder: transcript.
const SummaryUserPromptTemplate = "以下の会議の文字起こしを要約してください：\n\n%s"

// BuildSummaryUserPrompt builds the user turn for summarization.
func BuildSummaryUserPrompt(transcript string) string {
	return fmt.Sprintf(SummaryUserPromptTemplate, transcript)
}
