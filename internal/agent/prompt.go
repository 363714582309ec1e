package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"drama-server/internal/domain"
	"drama-server/internal/genre"
)

// historyPromptWindow caps how many history messages go into the generation
// prompt.
const historyPromptWindow = 10

// buildNarratorPrompt assembles the system prompt for the story generation:
// the genre's format instruction followed by the narrative context the model
// needs to stay consistent.
func buildNarratorPrompt(profile genre.Profile, state *domain.AgentState, story *domain.StoryScript, snapshot *domain.NarrativeSnapshot, memories []domain.MemoryRecord) string {
	varsJSON, err := json.MarshalIndent(state.StateVariables, "", "  ")
	if err != nil {
		varsJSON = []byte("{}")
	}

	summaries := make([]string, 0, len(memories))
	for _, m := range memories {
		summaries = append(summaries, m.Summary)
	}

	title := state.StoryID
	if story != nil && story.Title != "" {
		title = story.Title
	}

	var b strings.Builder
	b.WriteString(profile.SystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "你是《%s》剧本的叙事者。\n\n", title)
	fmt.Fprintf(&b, "当前章节：第%d章\n", state.CurrentChapter)
	fmt.Fprintf(&b, "当前局势：%s\n", state.CurrentSituation)
	fmt.Fprintf(&b, "剧本描述：%s\n\n", snapshot.Text)
	fmt.Fprintf(&b, "状态变量：\n%s\n\n", varsJSON)
	fmt.Fprintf(&b, "历史记忆：\n%s\n\n", strings.Join(summaries, "\n"))
	b.WriteString("请根据玩家的选择，生成生动的剧情描述。注意：\n" +
		"1. 保持角色一致性\n" +
		"2. 根据状态变量调整剧情\n" +
		"3. 为玩家提供有意义的选择\n" +
		"4. 推动剧情向前发展")
	return b.String()
}

// buildGenerationMessages produces the chat prompt: one system message plus
// the recent server-side history window and the player's new input.
func buildGenerationMessages(systemPrompt string, state *domain.AgentState, userInput string) []domain.Message {
	history := state.ConversationHistory
	if len(history) > historyPromptWindow {
		history = history[len(history)-historyPromptWindow:]
	}

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: "user", Content: userInput})
	return messages
}

// buildJudgmentPrompt assembles the judge's single user message.
func buildJudgmentPrompt(state *domain.AgentState, generatedText string) string {
	varsJSON, err := json.Marshal(state.StateVariables)
	if err != nil {
		varsJSON = []byte("{}")
	}

	return fmt.Sprintf(`你是剧情判定器。根据以下信息判断剧情进展：

当前章节：%d
当前局势：%s
状态变量：%s
最新剧情：%s

请判断：
1. 当前局势是否完成（0-100分）
2. 是否应该进入下一章节
3. 是否应该结束故事

返回 JSON 格式：
{
  "situationScore": 85,
  "shouldAdvanceChapter": true,
  "shouldEndStory": false,
  "rationale": "玩家成功解决了危机，应该进入下一章节",
  "stateChanges": {
    "treasury": -50
  }
}
`, state.CurrentChapter, state.CurrentSituation, varsJSON, generatedText)
}
