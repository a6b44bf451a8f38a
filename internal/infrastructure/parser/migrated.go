package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ForumMirror/internal/domain"
)

// Default hosts of the two sites.
const (
	DefaultPrimaryHost  = "govnokod.ru"
	DefaultMigratedHost = "govnokod.xyz"
)

// MigratedParser reads the migrated site's recent comments page. Identity fields are
// recovered from links, which point at either site.
type MigratedParser struct {
	migratedComment *regexp.Regexp
	primaryComment  *regexp.Regexp
	migratedUser    *regexp.Regexp
	primaryUser     *regexp.Regexp
}

// NewMigratedParser compiles link patterns for the given hosts.
func NewMigratedParser(primaryHost, migratedHost string) *MigratedParser {
	if primaryHost == "" {
		primaryHost = DefaultPrimaryHost
	}
	if migratedHost == "" {
		migratedHost = DefaultMigratedHost
	}
	ru := regexp.QuoteMeta(primaryHost)
	xyz := regexp.QuoteMeta(migratedHost)
	return &MigratedParser{
		migratedComment: regexp.MustCompile(`^https?://` + xyz + `/_(\d+)/#comment-(\d+)/?$`),
		primaryComment:  regexp.MustCompile(`^https?://` + ru + `/(\d+)#comment(\d+)/?$`),
		migratedUser:    regexp.MustCompile(`^https?://` + xyz + `/user/(\d+)/?$`),
		primaryUser:     regexp.MustCompile(`^https?://` + ru + `/user/(\d+)/?$`),
	}
}

// Parse returns the sightings in page order. Both historical layouts are accepted.
func (p *MigratedParser) Parse(content []byte) ([]domain.MigratedSighting, error) {
	doc, err := newDocument(content)
	if err != nil {
		return nil, err
	}

	entries := doc.Find("li.hcomment")
	if entries.Length() == 0 {
		entries = doc.Find(`article[id^="div-comment"]`)
	}
	if entries.Length() == 0 {
		return nil, fail(ErrNoEntries, "")
	}

	sightings := make([]domain.MigratedSighting, 0, entries.Length())
	entries.EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		var sighting domain.MigratedSighting
		sighting, err = p.parseEntry(entry)
		if err != nil {
			return false
		}
		sightings = append(sightings, sighting)
		return true
	})
	if err != nil {
		return nil, err
	}
	return sightings, nil
}

func (p *MigratedParser) parseEntry(entry *goquery.Selection) (domain.MigratedSighting, error) {
	var sighting domain.MigratedSighting

	info := entry.Find("p.entry-info").First()
	if info.Length() == 0 {
		return sighting, fail(ErrMissingNode, "entry info")
	}
	body := entry.Find("div.entry-comment").First()
	if body.Length() == 0 {
		return sighting, fail(ErrMissingNode, "entry comment")
	}

	var err error
	if sighting.Text, err = innerTextWithoutLinks(body); err != nil {
		return sighting, err
	}

	permalink := info.ChildrenFiltered("a.comment-link").First()
	if permalink.Length() == 0 {
		return sighting, fail(ErrMissingNode, "comment link")
	}
	if _, ok := permalink.Attr("href"); !ok {
		return sighting, fail(ErrMissingNode, "comment link href")
	}
	if legacy, ok := permalink.Attr("data-legacy-id"); ok && legacy != "" {
		id, err := strconv.ParseInt(legacy, 10, 64)
		if err != nil {
			return sighting, fail(ErrInvalidID, "legacy id %q", legacy)
		}
		sighting.ID = &id
	}

	var postID *int64
	info.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if post, id, ok := matchPair(p.migratedComment, href); ok {
			postID, sighting.XyzID = &post, &id
		}
		if post, id, ok := matchPair(p.primaryComment, href); ok {
			postID, sighting.ID = &post, &id
		}
		if id, ok := matchOne(p.migratedUser, href); ok {
			sighting.XyzUserID = &id
		}
		if id, ok := matchOne(p.primaryUser, href); ok {
			sighting.UserID = &id
		}
	})

	stampNode := info.Find("time").First()
	if stampNode.Length() == 0 {
		return sighting, fail(ErrMissingTimestamp, "no time element")
	}
	if sighting.ID == nil && sighting.XyzID == nil {
		return sighting, fail(ErrMissingCommentID, "")
	}
	if postID == nil {
		return sighting, fail(ErrMissingPostID, "comment %s/%s", formatID(sighting.ID), formatID(sighting.XyzID))
	}
	sighting.PostID = *postID

	stamp, ok := stampNode.Attr("datetime")
	if !ok {
		return sighting, fail(ErrMissingTimestamp, "no datetime attribute")
	}
	if sighting.Posted, err = parseISOTime(stamp); err != nil {
		return sighting, fail(ErrMissingTimestamp, "%q: %v", stamp, err)
	}
	return sighting, nil
}

func parseISOTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := ParseTimestamp(value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func matchPair(expr *regexp.Regexp, value string) (int64, int64, bool) {
	m := expr.FindStringSubmatch(value)
	if m == nil {
		return 0, 0, false
	}
	first, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	second, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return first, second, true
}

func matchOne(expr *regexp.Regexp, value string) (int64, bool) {
	m := expr.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
