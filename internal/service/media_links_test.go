package service

import (
	"fmt"
	"strings"
	"testing"
)

func TestShortenMediaLinks(t *testing.T) {
	body := "Lead ![chart](https://cdn.example.com/a/chart.png \"Votes\")\n" +
		"![](<https://cdn.example.com/b c.jpg>)\n" +
		`<video controls src="https://cdn.example.com/clip.mp4"></video>` + "\n" +
		"again ![dup](https://cdn.example.com/a/chart.png)"

	short, links := shortenMediaLinks(body)
	if links.Count() != 3 {
		t.Fatalf("expected 3 distinct links, got %d: %q", links.Count(), short)
	}
	if strings.Contains(short, "cdn.example.com") {
		t.Fatalf("urls should be replaced: %q", short)
	}
	for _, want := range []string{`![chart](media://1 "Votes")`, "![](<media://2>)", `src="media://3"`, "![dup](media://1)"} {
		if !strings.Contains(short, want) {
			t.Fatalf("expected %q in %q", want, short)
		}
	}

	if restored := links.Restore(short); restored != body {
		t.Fatalf("restore mismatch:\n got %q\nwant %q", restored, body)
	}
}

func TestMediaLinksRestoreLongPlaceholdersFirst(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "![](https://cdn.example.com/%d.png)\n", i)
	}
	short, links := shortenMediaLinks(b.String())
	if links.Count() != 12 {
		t.Fatalf("expected 12 links, got %d", links.Count())
	}

	out := links.Restore("see media://12 and media://1")
	if out != "see https://cdn.example.com/12.png and https://cdn.example.com/1.png" {
		t.Fatalf("unexpected restore %q", out)
	}
	if links.Restore(short) != b.String() {
		t.Fatalf("round trip failed")
	}
}

func TestShortenMediaLinksWithoutMedia(t *testing.T) {
	short, links := shortenMediaLinks("plain [link](https://example.com)")
	if links.Count() != 0 || short != "plain [link](https://example.com)" {
		t.Fatalf("links that are not media must stay untouched: %q", short)
	}
	var none *mediaLinks
	if none.Restore("media://1") != "media://1" {
		t.Fatalf("nil links should be a no-op")
	}
}
