package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ForumMirror/internal/domain"
)

var (
	descriptionOpenExpr  = regexp.MustCompile(`<p\s+class="description">`)
	descriptionCloseExpr = regexp.MustCompile(`</p>\s*<p\s+class="author">`)
	threadIDExpr         = regexp.MustCompile(`^comments_(\d+)$`)
	commentNodeIDExpr    = regexp.MustCompile(`^comment-(\d+)$`)
)

// PostPage is everything extracted from one post page.
type PostPage struct {
	Post     domain.Post      `json:"post"`
	Users    []domain.User    `json:"users"`
	Comments []domain.Comment `json:"comments"`
}

// MaxCommentID returns the highest comment id on the page.
func (p PostPage) MaxCommentID() (int64, bool) {
	var highest int64
	for _, c := range p.Comments {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return highest, len(p.Comments) > 0
}

// ParsePostPage extracts a post, its comment tree and all authors from a post page.
// Comments come out in document order, so a parent always precedes its replies.
func ParsePostPage(content []byte) (PostPage, error) {
	doc, err := newDocument(fixDescription(content))
	if err != nil {
		return PostPage{}, err
	}

	entry := doc.Find("li.hentry").First()
	if entry.Length() == 0 {
		return PostPage{}, fail(ErrMissingNode, "post entry")
	}
	author := entry.Find("p.author").First()
	if author.Length() == 0 {
		return PostPage{}, fail(ErrMissingNode, "post author")
	}
	list := entry.ChildrenFiltered("div.entry-comments").ChildrenFiltered("ul").First()
	if list.Length() == 0 {
		return PostPage{}, fail(ErrMissingNode, "comment list")
	}

	users := newUserSet()
	user, err := parsePostAuthor(author)
	if err != nil {
		return PostPage{}, err
	}
	users.add(user)

	post := domain.Post{Source: domain.SourcePrimary, UserID: user.ID}

	permalink, _ := entry.Find("a.entry-title").First().Attr("href")
	if post.ID, err = matchID(trailingIDExpr, permalink, "post permalink"); err != nil {
		return PostPage{}, err
	}

	listID, _ := list.Attr("id")
	if post.CommentListID, err = matchID(threadIDExpr, listID, "comment list"); err != nil {
		return PostPage{}, fail(ErrMissingThreadID, "%q", listID)
	}

	post.Language = strings.TrimSpace(entry.Find(`a[rel="chapter"]`).First().Text())

	entryContent := entry.ChildrenFiltered("div.entry-content").First()
	if code := entryContent.Find("code").First(); code.Length() > 0 {
		post.Code = code.Text()
	} else if post.Code, err = renderInner(entryContent); err != nil {
		return PostPage{}, err
	}

	if post.Text, err = innerText(entry.ChildrenFiltered("div.description").First()); err != nil {
		return PostPage{}, err
	}

	stamp, ok := author.ChildrenFiltered("abbr").First().Attr("title")
	if !ok {
		return PostPage{}, fail(ErrMissingTimestamp, "post %d", post.ID)
	}
	if post.Posted, err = ParseTimestamp(stamp); err != nil {
		return PostPage{}, fail(ErrMissingTimestamp, "post %d: %v", post.ID, err)
	}

	if post.Vote, err = voteFrom(entry.ChildrenFiltered("p.vote").ChildrenFiltered("strong").First()); err != nil {
		return PostPage{}, err
	}

	comments, err := parseCommentTree(list, post.ID, users)
	if err != nil {
		return PostPage{}, err
	}

	return PostPage{Post: post, Users: users.list(), Comments: comments}, nil
}

func fixDescription(content []byte) []byte {
	content = descriptionOpenExpr.ReplaceAll(content, []byte(`<div class="description">`))
	return descriptionCloseExpr.ReplaceAll(content, []byte(`</div><p class="author">`))
}

func parsePostAuthor(author *goquery.Selection) (domain.User, error) {
	href, _ := author.ChildrenFiltered("a").First().Attr("href")
	id, err := matchID(userHrefExpr, href, "post author")
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{ID: id, Source: domain.SourcePrimary}
	author.ChildrenFiltered(`a[href*="/user/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if name := strings.TrimSpace(link.Text()); name != "" {
			user.Name = name
			return false
		}
		return true
	})
	if src, ok := author.ChildrenFiltered("a").Find("img.avatar").First().Attr("src"); ok {
		user.AvatarHash = ParseAvatarHash(src)
	}
	return user, nil
}

type pendingComment struct {
	node     *goquery.Selection
	parentID *int64
}

// parseCommentTree walks nested reply lists depth-first without recursion.
func parseCommentTree(list *goquery.Selection, postID int64, users *userSet) ([]domain.Comment, error) {
	var (
		comments []domain.Comment
		stack    []pendingComment
	)
	push := func(items *goquery.Selection, parentID *int64) {
		nodes := items.Nodes
		for i := len(nodes) - 1; i >= 0; i-- {
			stack = append(stack, pendingComment{node: items.Eq(i), parentID: parentID})
		}
	}
	push(list.ChildrenFiltered("li.hcomment"), nil)

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		wrapper := item.node.ChildrenFiltered("div.entry-comment-wrapper").First()
		if wrapper.Length() == 0 {
			return nil, fail(ErrMissingNode, "comment wrapper in post %d", postID)
		}
		nodeID, _ := wrapper.Attr("id")
		id, err := matchID(commentNodeIDExpr, nodeID, "comment node")
		if err != nil {
			return nil, err
		}

		comment, user, err := parseCommentWrapper(wrapper, id, postID)
		if err != nil {
			return nil, err
		}
		comment.ParentID = item.parentID
		comments = append(comments, comment)
		users.add(user)

		parentID := id
		push(item.node.ChildrenFiltered("ul").ChildrenFiltered("li.hcomment"), &parentID)
	}
	return comments, nil
}

// parseCommentWrapper reads the fields shared by post pages and the recent comments page.
func parseCommentWrapper(wrapper *goquery.Selection, id, postID int64) (domain.Comment, domain.User, error) {
	comment := domain.Comment{ID: id, PostID: postID, Source: domain.SourcePrimary}

	body := wrapper.ChildrenFiltered("div.entry-comment").First()
	if text := body.ChildrenFiltered("span.comment-text").First(); text.Length() > 0 {
		body = text
	}
	var err error
	if comment.Text, err = innerText(body); err != nil {
		return comment, domain.User{}, err
	}

	info := wrapper.ChildrenFiltered("p.entry-info").First()
	if info.Length() == 0 {
		return comment, domain.User{}, fail(ErrMissingNode, "info of comment %d", id)
	}

	stamp, ok := info.ChildrenFiltered("abbr.published").First().Attr("title")
	if !ok {
		return comment, domain.User{}, fail(ErrMissingTimestamp, "comment %d", id)
	}
	if comment.Posted, err = ParseTimestamp(stamp); err != nil {
		return comment, domain.User{}, fail(ErrMissingTimestamp, "comment %d: %v", id, err)
	}

	if comment.Vote, err = voteFrom(info.ChildrenFiltered("span.comment-vote").ChildrenFiltered("strong").First()); err != nil {
		return comment, domain.User{}, err
	}

	link := info.ChildrenFiltered("strong.entry-author").ChildrenFiltered("a").First()
	if link.Length() == 0 {
		return comment, domain.User{}, fail(ErrMissingNode, "author of comment %d", id)
	}
	href, _ := link.Attr("href")
	user := domain.User{Name: strings.TrimSpace(link.Text()), Source: domain.SourcePrimary}
	if user.ID, err = matchID(userHrefExpr, href, "comment author"); err != nil {
		return comment, domain.User{}, err
	}
	if src, ok := info.ChildrenFiltered("img.avatar").First().Attr("src"); ok {
		user.AvatarHash = ParseAvatarHash(src)
	}
	comment.UserID = user.ID
	return comment, user, nil
}

func renderInner(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	return renderChildren(sel.Get(0))
}

// userSet keeps the last seen version of every user in first-seen order.
type userSet struct {
	order []int64
	byID  map[int64]domain.User
}

func newUserSet() *userSet {
	return &userSet{byID: map[int64]domain.User{}}
}

func (s *userSet) add(user domain.User) {
	if _, ok := s.byID[user.ID]; !ok {
		s.order = append(s.order, user.ID)
	}
	s.byID[user.ID] = user
}

func (s *userSet) list() []domain.User {
	users := make([]domain.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.byID[id])
	}
	return users
}
