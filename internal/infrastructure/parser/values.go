package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"ForumMirror/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z0700"

var (
	offsetColonExpr = regexp.MustCompile(`(\d\d):(\d\d)$`)
	voteTitleExpr   = regexp.MustCompile(`^(\d+) .* (\d+) .*`)
	avatarExpr      = regexp.MustCompile(`/avatar/([0-9a-f]{32})`)
	userHrefExpr    = regexp.MustCompile(`/user/(\d+)$`)
	trailingIDExpr  = regexp.MustCompile(`/(\d+)$`)
)

// ParseTimestamp parses the site's ISO-8601 timestamps, which put a colon inside the UTC offset.
// The result is in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	normalized := offsetColonExpr.ReplaceAllString(strings.TrimSpace(value), "$1$2")
	t, err := time.Parse(timestampLayout, normalized)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseRating parses a rating value. The site prints negative numbers with U+2212.
func ParseRating(text string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), "−", "-")
	normalized = strings.TrimPrefix(normalized, "+")
	return decimal.NewFromString(normalized)
}

// ParseVote reads the counters from a vote title like "5 за и 2 против" and the rating from text.
// A title in any other shape yields a zero vote.
func ParseVote(title, text string) (domain.Vote, error) {
	m := voteTitleExpr.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return domain.Vote{}, nil
	}
	plus, errPlus := strconv.Atoi(m[1])
	minus, errMinus := strconv.Atoi(m[2])
	if errPlus != nil || errMinus != nil {
		return domain.Vote{}, nil
	}
	rating, err := ParseRating(text)
	if err != nil {
		return domain.Vote{}, fail(ErrInvalidRating, "%q", text)
	}
	return domain.Vote{Plus: plus, Minus: minus, Rating: rating}, nil
}

// ParseAvatarHash extracts the 32 hex digit avatar hash from an image URL, or "".
func ParseAvatarHash(src string) string {
	if m := avatarExpr.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

func voteFrom(node *goquery.Selection) (domain.Vote, error) {
	if node.Length() == 0 {
		return domain.Vote{}, nil
	}
	title, _ := node.Attr("title")
	return ParseVote(title, node.Text())
}

func matchID(expr *regexp.Regexp, value, what string) (int64, error) {
	m := expr.FindStringSubmatch(value)
	if m == nil {
		return 0, fail(ErrInvalidID, "%s %q", what, value)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fail(ErrInvalidID, "%s %q", what, value)
	}
	return id, nil
}
