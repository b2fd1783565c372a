package reddit

import (
	"encoding/json"
	"fmt"

	"github.com/elsbot/snapshotbot/internal/bot"
)

const (
	kindComment = "t1"
	kindLink    = "t3"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type post struct {
	ID           string  `json:"id"`
	Domain       string  `json:"domain"`
	URL          string  `json:"url"`
	IsSelf       bool    `json:"is_self"`
	SelftextHTML *string `json:"selftext_html"`
	Archived     bool    `json:"archived"`
}

func (p post) submission() bot.Submission {
	s := bot.Submission{
		ID:       p.ID,
		Domain:   p.Domain,
		URL:      p.URL,
		IsSelf:   p.IsSelf,
		Archived: p.Archived,
	}
	if p.SelftextHTML != nil {
		s.BodyHTML = *p.SelftextHTML
	}
	return s
}

type comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	// Replies is "" when there are none, otherwise a listing.
	Replies json.RawMessage `json:"replies"`
}

// flatten appends the comments of l and all nested replies in depth-first order.
// "more" stubs are skipped.
func flatten(l listing, out *[]bot.Comment) error {
	for _, child := range l.Data.Children {
		if child.Kind != kindComment {
			continue
		}
		var c comment
		if err := json.Unmarshal(child.Data, &c); err != nil {
			return fmt.Errorf("decode comment: %w", err)
		}
		*out = append(*out, bot.Comment{ID: c.ID, Author: c.Author})
		if len(c.Replies) == 0 || c.Replies[0] != '{' {
			continue
		}
		var nested listing
		if err := json.Unmarshal(c.Replies, &nested); err != nil {
			return fmt.Errorf("decode replies of %s: %w", c.ID, err)
		}
		if err := flatten(nested, out); err != nil {
			return err
		}
	}
	return nil
}
