package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longParagraphs(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("<p>孩子们在周末一起读完了一本绘本，然后轮流讲给爸爸妈妈听，每个人都有自己的理解。</p>")
	}
	return sb.String()
}

func testExtractor(render RenderFunc) *Extractor {
	return NewExtractor(ExtractorOptions{Backoff: time.Millisecond, Render: render})
}

func TestFromHTML_WeChat(t *testing.T) {
	html := `<html><head><title>页面标题</title></head><body>
<h1 id="activity-name"> 陪孩子读书的第100天 </h1>
<div id="js_content">` + longParagraphs(2) + `<div id="js_pc_qr_code">扫码关注</div></div>
</body></html>`

	article, err := testExtractor(nil).FromHTML("https://mp.weixin.qq.com/s/x", html)
	require.NoError(t, err)
	assert.Equal(t, PlatformWeChat, article.Platform)
	assert.Equal(t, MethodPlatform, article.Method)
	assert.Equal(t, "陪孩子读书的第100天", article.Title)
	assert.Contains(t, article.Text, "绘本")
	assert.NotContains(t, article.Text, "扫码关注")
}

func TestFromHTML_Readability(t *testing.T) {
	html := `<html><head><title>亲子共读的五个习惯</title></head><body>
<nav>首页 | 关于</nav>
<article><h1>亲子共读的五个习惯</h1>` + longParagraphs(8) + `</article>
<footer>版权所有</footer></body></html>`

	article, err := testExtractor(nil).FromHTML("https://blog.example.com/post/1", html)
	require.NoError(t, err)
	assert.Equal(t, PlatformUnknown, article.Platform)
	assert.Contains(t, article.Text, "绘本")
	assert.NotContains(t, article.Text, "版权所有")
	assert.Contains(t, article.Title, "亲子共读")
}

func TestFromHTML_Empty(t *testing.T) {
	_, err := testExtractor(nil).FromHTML("https://mp.weixin.qq.com/s/x", `<html><body><div id="js_content"></div></body></html>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no article text")
}

func TestFromHTML_Truncates(t *testing.T) {
	e := NewExtractor(ExtractorOptions{MaxTextRunes: 50})
	article, err := e.FromHTML("https://mp.weixin.qq.com/s/x", `<div id="js_content">`+longParagraphs(5)+`</div>`)
	require.NoError(t, err)
	assert.True(t, article.Truncated)
	assert.Equal(t, 50, len([]rune(article.Text)))
}

func TestExtract_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<html><body><article>` + longParagraphs(8) + `</article></body></html>`))
	}))
	defer server.Close()

	article, err := testExtractor(nil).Extract(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, article.Text, "绘本")
}

func TestExtract_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testExtractor(nil).Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_BrowserFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="app">加载中</div></body></html>`))
	}))
	defer server.Close()

	tests := []struct {
		name     string
		render   RenderFunc
		browsed  bool
		wantText string
	}{
		{
			name: "rendered page used",
			render: func(context.Context, string) (string, error) {
				return `<html><body><article>` + longParagraphs(8) + `</article></body></html>`, nil
			},
			browsed:  true,
			wantText: "绘本",
		},
		{
			name: "render failure keeps static text",
			render: func(context.Context, string) (string, error) {
				return "", errors.New("chrome not installed")
			},
			wantText: "加载中",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article, err := testExtractor(tt.render).Extract(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.browsed, article.Method == MethodBrowser)
			assert.Contains(t, article.Text, tt.wantText)
		})
	}
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("加载中"))
	assert.False(t, ShouldUseBrowser(strings.Repeat("字", MinContentLength)))
}
