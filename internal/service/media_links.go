package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const mediaPlaceholderScheme = "media://"

var (
	markdownImageLink = regexp.MustCompile(`!\[[^\]]*]\((<[^>]+>|[^)\s]+)[^)]*\)`)
	htmlMediaSource   = regexp.MustCompile(`(?i)<(?:img|video|source)\b[^>]*?\ssrc\s*=\s*["']([^"']+)["']`)
)

type mediaLink struct {
	placeholder string
	original    string
}

// mediaLinks 记录正文里被替换成短占位符的图片与视频地址，
// 长 CDN 链接对生成结果没有意义，只会占用上下文。
type mediaLinks struct {
	links []mediaLink
}

// shortenMediaLinks 把 Markdown 图片与内嵌 img/video/source 的 src 换成 media://N。
// 同一地址重复出现时复用同一个占位符。
func shortenMediaLinks(body string) (string, *mediaLinks) {
	links := &mediaLinks{}
	byURL := make(map[string]string)

	placeholderFor := func(url string) string {
		if placeholder, ok := byURL[url]; ok {
			return placeholder
		}
		placeholder := fmt.Sprintf("%s%d", mediaPlaceholderScheme, len(links.links)+1)
		byURL[url] = placeholder
		links.links = append(links.links, mediaLink{placeholder: placeholder, original: url})
		return placeholder
	}

	replaceGroup := func(pattern *regexp.Regexp, input string) string {
		return pattern.ReplaceAllStringFunc(input, func(match string) string {
			groups := pattern.FindStringSubmatch(match)
			if len(groups) < 2 {
				return match
			}
			url := strings.TrimSuffix(strings.TrimPrefix(groups[1], "<"), ">")
			if strings.HasPrefix(url, mediaPlaceholderScheme) {
				return match
			}
			return strings.Replace(match, url, placeholderFor(url), 1)
		})
	}

	out := replaceGroup(markdownImageLink, body)
	out = replaceGroup(htmlMediaSource, out)
	return out, links
}

func (m *mediaLinks) Count() int {
	if m == nil {
		return 0
	}
	return len(m.links)
}

// Restore 把生成结果里的占位符换回原地址。先替换编号长的，避免 media://1 截断 media://12。
func (m *mediaLinks) Restore(text string) string {
	if m.Count() == 0 {
		return text
	}

	ordered := make([]mediaLink, len(m.links))
	copy(ordered, m.links)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].placeholder) > len(ordered[j].placeholder)
	})

	pairs := make([]string, 0, len(ordered)*2)
	for _, link := range ordered {
		pairs = append(pairs, link.placeholder, link.original)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
