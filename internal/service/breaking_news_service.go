package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/db"
	"go.uber.org/zap"
)

// 快讯来源
const (
	HeadlineSourceFeed  = "feed"
	HeadlineSourcePosts = "posts"
)

const defaultHeadlineLimit = 10

// Headline 是一条快讯。
type Headline struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Slug        string     `json:"slug,omitempty"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// BreakingNewsService 提供快讯列表：优先读取配置的 RSS/Atom 源，未配置或拉取失败时回退到
// breaking-news 分类下最新发布的文章。结果按 TTL 缓存。
type BreakingNewsService struct {
	posts  *PostService
	cache  cache.Store
	cfg    config.BreakingNewsConfig
	ttl    time.Duration
	client *http.Client
	strip  *bluemonday.Policy
	log    *zap.Logger
}

// NewBreakingNewsService creates a BreakingNewsService instance.
func NewBreakingNewsService(posts *PostService, store cache.Store, cfg config.BreakingNewsConfig, ttl time.Duration) *BreakingNewsService {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultHeadlineLimit
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &BreakingNewsService{
		posts:  posts,
		cache:  store,
		cfg:    cfg,
		ttl:    ttl,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		strip:  bluemonday.StrictPolicy(),
		log:    zap.NewNop(),
	}
}

func (s *BreakingNewsService) WithLogger(log *zap.Logger) *BreakingNewsService {
	if log != nil {
		s.log = log.Named("breaking_news")
	}
	return s
}

// Headlines 返回缓存中的快讯，未命中时重新构建。
func (s *BreakingNewsService) Headlines(ctx context.Context) ([]Headline, error) {
	if s.cache != nil {
		var cached []Headline
		hit, err := s.cache.Get(ctx, cache.KeyBreakingNews, &cached)
		if err != nil {
			s.log.Warn("read breaking news cache failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh 重新构建快讯并写入缓存，供定时任务调用。
func (s *BreakingNewsService) Refresh(ctx context.Context) ([]Headline, error) {
	headlines, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyBreakingNews, headlines, s.ttl); err != nil {
			s.log.Warn("write breaking news cache failed", zap.Error(err))
		}
	}
	return headlines, nil
}

func (s *BreakingNewsService) build(ctx context.Context) ([]Headline, error) {
	if feedURL := strings.TrimSpace(s.cfg.FeedURL); feedURL != "" {
		headlines, err := s.fromFeed(ctx, feedURL)
		if err == nil && len(headlines) > 0 {
			return headlines, nil
		}
		if err != nil {
			s.log.Warn("fetch breaking news feed failed, falling back to posts", zap.String("url", feedURL), zap.Error(err))
		}
	}
	return s.fromPosts()
}

func (s *BreakingNewsService) fromFeed(ctx context.Context, feedURL string) ([]Headline, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = s.client
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("解析快讯源失败: %w", err)
	}

	headlines := make([]Headline, 0, s.cfg.Limit)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(s.strip.Sanitize(item.Title))
		if title == "" {
			continue
		}
		headline := Headline{
			Title:  title,
			URL:    strings.TrimSpace(item.Link),
			Source: HeadlineSourceFeed,
		}
		if published := item.PublishedParsed; published != nil {
			at := published.UTC()
			headline.PublishedAt = &at
		} else if updated := item.UpdatedParsed; updated != nil {
			at := updated.UTC()
			headline.PublishedAt = &at
		}
		headlines = append(headlines, headline)
		if len(headlines) >= s.cfg.Limit {
			break
		}
	}
	return headlines, nil
}

func (s *BreakingNewsService) fromPosts() ([]Headline, error) {
	if s.posts == nil {
		return []Headline{}, nil
	}
	posts, err := s.posts.LatestPublishedInCategory(s.cfg.CategorySlug, s.cfg.Limit)
	if err != nil {
		return nil, err
	}

	headlines := make([]Headline, 0, len(posts))
	for _, post := range posts {
		headlines = append(headlines, headlineFromPost(post))
	}
	return headlines, nil
}

func headlineFromPost(post db.Post) Headline {
	return Headline{
		Title:       post.Title,
		URL:         "/api/v1/public/posts/" + post.Slug,
		Slug:        post.Slug,
		Source:      HeadlineSourcePosts,
		PublishedAt: post.PublishedAt,
	}
}
