package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extraction limits
const (
	DefaultMaxTextRunes = 15000
	defaultAttempts     = 3
)

// Extraction methods
const (
	MethodPlatform    = "platform"
	MethodReadability = "readability"
	MethodSelectors   = "selectors"
	MethodBrowser     = "browser"
)

// Article is the readable content of one page.
type Article struct {
	URL       string
	Platform  Platform
	Title     string
	Byline    string
	Text      string
	Published *time.Time
	Method    string
	Truncated bool
}

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	Fetch *Options
	// Attempts bounds HTTP retries; Backoff is multiplied by the attempt number.
	Attempts     int
	Backoff      time.Duration
	MaxTextRunes int
	// Render, when set, is used for pages whose static HTML is too thin.
	Render RenderFunc
	Logger *slog.Logger
}

// Extractor turns article URLs into plain text.
type Extractor struct {
	opts   ExtractorOptions
	logger *slog.Logger
}

// NewExtractor creates an extractor with defaults filled in.
func NewExtractor(opts ExtractorOptions) *Extractor {
	if opts.Fetch == nil {
		opts.Fetch = DefaultOptions()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.MaxTextRunes <= 0 {
		opts.MaxTextRunes = DefaultMaxTextRunes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract downloads urlStr and extracts its article.
func (e *Extractor) Extract(ctx context.Context, urlStr string) (*Article, error) {
	html, err := e.download(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	article, err := e.FromHTML(urlStr, html)
	if err == nil && !ShouldUseBrowser(article.Text) {
		return article, nil
	}
	if e.opts.Render == nil {
		if err != nil {
			return nil, err
		}
		return article, nil
	}

	e.logger.Info("static page too thin, rendering in browser", "url", urlStr)
	rendered, rerr := e.opts.Render(ctx, urlStr)
	if rerr != nil {
		if err != nil {
			return nil, fmt.Errorf("%w (browser fallback: %v)", err, rerr)
		}
		e.logger.Warn("browser rendering failed, keeping static extraction", "url", urlStr, "error", rerr)
		return article, nil
	}
	browsed, berr := e.FromHTML(urlStr, rendered)
	if berr != nil {
		if err != nil {
			return nil, berr
		}
		return article, nil
	}
	browsed.Method = MethodBrowser
	return browsed, nil
}

func (e *Extractor) download(ctx context.Context, urlStr string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.Attempts; attempt++ {
		result, err := URL(ctx, urlStr, e.opts.Fetch)
		if err == nil {
			return result.HTML, nil
		}
		lastErr = err
		if !retryable(result, err) || attempt == e.opts.Attempts {
			break
		}
		e.logger.Debug("fetch failed, retrying", "url", urlStr, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.opts.Backoff * time.Duration(attempt)):
		}
	}
	return "", lastErr
}

// retryable reports whether a failed fetch may succeed on retry: transport
// errors and 429/5xx responses.
func retryable(result *Result, err error) bool {
	if err == nil {
		return false
	}
	if result == nil {
		var fe *Error
		if errors.As(err, &fe) && (fe.Message == "invalid URL" || strings.HasPrefix(fe.Message, "unsupported scheme")) {
			return false
		}
		return true
	}
	return result.StatusCode == http.StatusTooManyRequests || result.StatusCode >= http.StatusInternalServerError
}

// FromHTML extracts an article from already downloaded HTML. Known platforms
// use their own selectors; other pages go through readability with a
// selector fallback.
func (e *Extractor) FromHTML(urlStr, html string) (*Article, error) {
	platform := DetectPlatform(urlStr)
	article := &Article{URL: urlStr, Platform: platform}

	if platform != PlatformUnknown {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		article.Title = firstText(doc, PlatformTitleSelectors(platform))
		if article.Title == "" {
			article.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		article.Text = mainText(doc, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform))
		article.Method = MethodPlatform
	} else {
		parsedURL, _ := url.Parse(urlStr)
		parsed, err := readability.FromReader(strings.NewReader(html), parsedURL)
		if err == nil {
			article.Title = strings.TrimSpace(parsed.Title)
			article.Byline = strings.TrimSpace(parsed.Byline)
			article.Text = normalizeText(parsed.TextContent)
			article.Published = parsed.PublishedTime
			article.Method = MethodReadability
		}
		if err != nil || ShouldUseBrowser(article.Text) {
			text, serr := ExtractMainText(html, DefaultTextSelectors(), PlatformNoiseSelectors(PlatformUnknown)...)
			if serr != nil && err != nil {
				return nil, fmt.Errorf("failed to extract article: %w", err)
			}
			if utf8.RuneCountInString(text) > utf8.RuneCountInString(article.Text) {
				article.Text = text
				article.Method = MethodSelectors
			}
		}
	}

	if strings.TrimSpace(article.Text) == "" {
		return nil, &Error{URL: urlStr, Message: "no article text found"}
	}
	if utf8.RuneCountInString(article.Text) > e.opts.MaxTextRunes {
		article.Text = string([]rune(article.Text)[:e.opts.MaxTextRunes])
		article.Truncated = true
	}
	return article, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

var (
	multiSpace   = regexp.MustCompile(`[ \t\x{3000}]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
