package fetch

import (
	"net/url"
	"strings"
)

// Platform is a known article publishing site.
type Platform string

// Known platforms
const (
	PlatformWeChat  Platform = "wechat"
	PlatformZhihu   Platform = "zhihu"
	PlatformJianshu Platform = "jianshu"
	PlatformToutiao Platform = "toutiao"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the publishing platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case host == "mp.weixin.qq.com":
		return PlatformWeChat
	case host == "zhihu.com" || strings.HasSuffix(host, ".zhihu.com"):
		return PlatformZhihu
	case host == "jianshu.com" || strings.HasSuffix(host, ".jianshu.com"):
		return PlatformJianshu
	case host == "toutiao.com" || strings.HasSuffix(host, ".toutiao.com"):
		return PlatformToutiao
	}
	return PlatformUnknown
}

// PlatformContentSelectors returns the article body selectors for a platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformWeChat:
		return []string{"#js_content", ".rich_media_content"}
	case PlatformZhihu:
		return []string{".Post-RichText", ".RichText", ".Post-RichTextContainer"}
	case PlatformJianshu:
		return []string{"article", ".show-content", ".article .show-content-free"}
	case PlatformToutiao:
		return []string{".article-content", "article"}
	default:
		return DefaultTextSelectors()
	}
}

// PlatformTitleSelectors returns the selectors holding the article title.
func PlatformTitleSelectors(platform Platform) []string {
	switch platform {
	case PlatformWeChat:
		return []string{"#activity-name", ".rich_media_title"}
	case PlatformZhihu:
		return []string{".Post-Title", "h1.QuestionHeader-title"}
	case PlatformJianshu:
		return []string{"h1._1RuRku", "h1.title"}
	default:
		return []string{"h1"}
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		".social-share",
		".share-buttons",
		".comment",
		".comments",
		".recommend",
		".related",
		".cookie-consent",
	}

	switch platform {
	case PlatformWeChat:
		return append(common,
			".qr_code_pc",
			"#js_pc_qr_code",
			".rich_media_tool",
			"#js_sponsor_ad_area",
			".reward_area",
			"#js_tags",
		)
	case PlatformZhihu:
		return append(common,
			".ContentItem-actions",
			".Post-topicsAndReviewer",
			".RichContent-actions",
		)
	case PlatformJianshu:
		return append(common,
			"._3Z3nHf",
			".follow-detail",
		)
	default:
		return common
	}
}
