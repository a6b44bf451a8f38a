package parser

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"ForumMirror/internal/domain"
)

var commentLinkExpr = regexp.MustCompile(`/(\d+)#comment(\d+)$`)

// CommentPage is the content of a recent comments page.
type CommentPage struct {
	Comments []domain.Comment `json:"comments"`
	Users    []domain.User    `json:"users"`
}

// ParseRecentComments extracts every comment listed on the primary site's recent comments page.
// The page is flat: comments carry no parent.
func ParseRecentComments(content []byte) (CommentPage, error) {
	doc, err := newDocument(content)
	if err != nil {
		return CommentPage{}, err
	}

	var (
		page  CommentPage
		users = newUserSet()
	)
	doc.Find("li.hcomment").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		var comment domain.Comment
		var user domain.User
		comment, user, err = parseSinkEntry(entry)
		if err != nil {
			return false
		}
		page.Comments = append(page.Comments, comment)
		users.add(user)
		return true
	})
	if err != nil {
		return CommentPage{}, err
	}
	page.Users = users.list()
	return page, nil
}

func parseSinkEntry(entry *goquery.Selection) (domain.Comment, domain.User, error) {
	wrapper := entry.ChildrenFiltered("div.entry-comment-wrapper").First()
	if wrapper.Length() == 0 {
		return domain.Comment{}, domain.User{}, fail(ErrMissingNode, "comment wrapper")
	}
	href, _ := wrapper.ChildrenFiltered("p.entry-info").ChildrenFiltered("a.comment-link").First().Attr("href")
	m := commentLinkExpr.FindStringSubmatch(href)
	if m == nil {
		return domain.Comment{}, domain.User{}, fail(ErrInvalidID, "comment link %q", href)
	}
	postID, errPost := strconv.ParseInt(m[1], 10, 64)
	id, errComment := strconv.ParseInt(m[2], 10, 64)
	if errPost != nil || errComment != nil {
		return domain.Comment{}, domain.User{}, fail(ErrInvalidID, "comment link %q", href)
	}
	return parseCommentWrapper(wrapper, id, postID)
}
