package genre

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	p, ok := Lookup("chongzhen")
	assert.True(t, ok)
	assert.Equal(t, "chongzhen", p.Name)

	_, ok = Lookup("noir")
	assert.False(t, ok)
}

func TestLabelsOrder(t *testing.T) {
	assert.Equal(t, []string{"回复：", "📖剧情：", "📊成果：", "💡 提示："}, Chongzhen.Labels())
	// Genres without a hint section drop the trailing label.
	assert.Equal(t, []string{"✨ 场景：", "📜 剧情：", "🎯 选项："}, Fantasy.Labels())
}

func TestSystemPromptsNameTheirLabels(t *testing.T) {
	for _, p := range []Profile{Chongzhen, Fantasy, Cyberpunk} {
		for _, label := range p.Labels() {
			assert.True(t, strings.Contains(p.SystemPrompt, label),
				"%s prompt must mention label %q", p.Name, label)
		}
	}
}

func TestNamesCoversRegistry(t *testing.T) {
	names := Names()
	assert.ElementsMatch(t, []string{"chongzhen", "fantasy", "cyberpunk"}, names)
}
