// Package genre holds the declarative per-genre streaming profiles: the
// system prompt injected ahead of the conversation and the output template
// the normalizer enforces on the final text. Adding a genre means adding a
// profile here, not another handler.
package genre

// Profile describes one genre's prompt and output template.
type Profile struct {
	Name         string
	SystemPrompt string

	// Required section labels, in the fixed order they must appear in a
	// conformant document. SummaryLabel and StoryLabel drive extraction when
	// a non-conformant document has to be rebuilt; ResultLabel and HintLabel
	// may be empty for genres with fewer sections.
	SummaryLabel string
	StoryLabel   string
	ResultLabel  string
	HintLabel    string

	// Fill values used when a section has to be synthesized.
	DefaultSummary string
	DefaultBody    string
	DefaultResult  string
	DefaultHint    string
}

// Labels returns the profile's required labels in template order.
func (p Profile) Labels() []string {
	labels := make([]string, 0, 4)
	for _, l := range []string{p.SummaryLabel, p.StoryLabel, p.ResultLabel, p.HintLabel} {
		if l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// Chongzhen — 崇祯皇帝剧本: 明末军政模拟, строгий четырехсекционный шаблон.
var Chongzhen = Profile{
	Name: "chongzhen",
	SystemPrompt: "你是大明王朝的军政智囊。无论输入内容如何，你必须用中文输出，并且严格按照下面模板组织答案（不要添加额外段落或前后缀）：\n\n" +
		"回复：<一句话总结或指令>\n\n" +
		"📖剧情：<以小说口吻描述该决策引发的剧情进展，至少两段>\n\n" +
		"📊成果：（为大明续命 <0-10 的整数> 年）\n" +
		"💡 提示：（处理上述事件，或输入 \"继续\"，则开启新事件）\n\n" +
		"请确保\"回复：\"\"📖剧情：\"\"📊成果：\"\"💡 提示：\"四个标签完整保留。",
	SummaryLabel:   "回复：",
	StoryLabel:     "📖剧情：",
	ResultLabel:    "📊成果：",
	HintLabel:      "💡 提示：",
	DefaultSummary: "请继续下旨",
	DefaultBody:    "剧情生成暂时缺失，请稍后再试。",
	DefaultResult:  "（为大明续命 0 年）",
	DefaultHint:    "（处理上述事件，或输入 \"继续\"，则开启新事件）",
}

// Fantasy — 阿卡纳魔法学院剧本.
var Fantasy = Profile{
	Name: "fantasy",
	SystemPrompt: "你是阿卡纳魔法学院的导师。请用中文输出，按照以下格式组织回复：\n\n" +
		"✨ 场景：<描述当前场景和氛围>\n\n" +
		"📜 剧情：<详细描述事件发展，至少两段>\n\n" +
		"🎯 选项：<提供2-3个可选的行动方案>\n\n" +
		"请保持奇幻风格，注重魔法世界的细节描写。",
	SummaryLabel:   "✨ 场景：",
	StoryLabel:     "📜 剧情：",
	ResultLabel:    "🎯 选项：",
	DefaultSummary: "学院的走廊一片寂静",
	DefaultBody:    "剧情生成暂时缺失，请稍后再试。",
	DefaultResult:  "（输入你的下一步行动）",
}

// Cyberpunk — 赛博朋克调查剧本.
var Cyberpunk = Profile{
	Name: "cyberpunk",
	SystemPrompt: "你是赛博朋克世界的AI助手。请用中文输出，按照以下格式组织回复：\n\n" +
		"🌃 环境：<描述当前场景，突出科技感和霓虹氛围>\n\n" +
		"💻 情报：<详细描述事件发展和线索，至少两段>\n\n" +
		"⚡ 行动：<提供2-3个可选的调查或行动方向>\n\n" +
		"请保持赛博朋克风格，注重科技、阴谋和人性的冲突。",
	SummaryLabel:   "🌃 环境：",
	StoryLabel:     "💻 情报：",
	ResultLabel:    "⚡ 行动：",
	DefaultSummary: "霓虹在雨夜里闪烁",
	DefaultBody:    "剧情生成暂时缺失，请稍后再试。",
	DefaultResult:  "（输入你的下一步行动）",
}

var registry = map[string]Profile{
	Chongzhen.Name: Chongzhen,
	Fantasy.Name:   Fantasy,
	Cyberpunk.Name: Cyberpunk,
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names lists the registered genres.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
