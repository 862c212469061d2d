package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "zero width", in: "a\u200bb", want: "ab"},
		{name: "collapse whitespace", in: "  first\n\n  second\tthird ", want: "first second third"},
		{name: "undefined artifact", in: "[img](undefined) caption\nkeep", want: "caption keep"},
		{name: "image placeholder", in: "look 显示图片(./mon_202401/a.jpg) here", want: "look here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "版本前瞻", CleanTitle("版本前瞻 - NGA玩家社区"))
	assert.Equal(t, "版本前瞻", CleanTitle(" 版本前瞻 - 艾泽拉斯国家地理论坛"))
	assert.Equal(t, "plain", CleanTitle("plain"))
	assert.Equal(t, "", CleanTitle(""))
}

func TestSiteTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "subject - part", SiteTitle("subject - part - 炉石传说 - NGA玩家社区"))
	assert.Equal(t, "subject", SiteTitle("subject - 艾泽拉斯国家地理论坛"))
	assert.Equal(t, "no site suffix - here", SiteTitle("no site suffix - here"))
}

func TestCleanCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "游戏", CleanCategory(":: 游戏 ::"))
	assert.Equal(t, "生活", CleanCategory(" 生活 "))
	assert.Equal(t, "", CleanCategory(":::"))
}
