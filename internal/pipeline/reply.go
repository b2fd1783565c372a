package pipeline

import (
	"fmt"
	"strings"

	"github.com/elsbot/snapshotbot/internal/bot"
)

// ComposeReply renders the reply body. self is omitted when empty.
func ComposeReply(quote, self string, links []bot.ArchivedLink, botSubreddit string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(quote)
	b.WriteString("\n\nSnapshots:\n\n")
	if self != "" {
		fmt.Fprintf(&b, "* [This post](%s)\n", self)
	}
	for _, l := range links {
		fmt.Fprintf(&b, "* [%s](%s)\n\n", l.Label, l.ArchiveURL)
	}
	fmt.Fprintf(&b, "\n\n*I am a bot. ([Info](/r/%[1]s) | [Contact](/r/%[1]s/submit?selftext=true))*\n", botSubreddit)
	return b.String()
}

// TruncateLabel returns a prefix of label whose length in runes is drawn
// uniformly from [minLen, maxLen].
func TruncateLabel(label string, minLen, maxLen int, rnd bot.Rand) string {
	n := minLen
	if maxLen > minLen && rnd != nil {
		n += rnd.Intn(maxLen - minLen + 1)
	}
	runes := []rune(label)
	if len(runes) <= n {
		return label
	}
	return string(runes[:n])
}
