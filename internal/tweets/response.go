package tweets

import (
	"time"

	"github.com/mselser95/bangr-engine/pkg/types"
)

// twitterCreatedAtLayout is the classic Twitter timestamp format.
const twitterCreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type tweetsResponse struct {
	Tweets []apiTweet `json:"tweets"`
	Status string     `json:"status"`
	Msg    string     `json:"msg"`
}

type apiAuthor struct {
	UserName        string `json:"userName"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfilePicture  string `json:"profilePicture"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (a *apiAuthor) handle() string {
	if a.UserName != "" {
		return a.UserName
	}
	return a.Username
}

func (a *apiAuthor) avatar() string {
	if a.ProfilePicture != "" {
		return a.ProfilePicture
	}
	return a.ProfileImageURL
}

type apiMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	URL           string `json:"url"`
}

type apiEntities struct {
	Media []apiMedia `json:"media"`
}

type publicMetrics struct {
	ImpressionCount uint64 `json:"impression_count"`
	LikeCount       uint64 `json:"like_count"`
	RetweetCount    uint64 `json:"retweet_count"`
	ReplyCount      uint64 `json:"reply_count"`
	QuoteCount      uint64 `json:"quote_count"`
	BookmarkCount   uint64 `json:"bookmark_count"`
}

// apiTweet accepts both the flat twitterapi.io counters and the v2-style
// public_metrics object. Flat counters win when present.
type apiTweet struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	FullText  string     `json:"full_text"`
	CreatedAt string     `json:"createdAt"`
	Author    *apiAuthor `json:"author"`
	User      *apiAuthor `json:"user"`

	ViewCount     *uint64 `json:"viewCount"`
	LikeCount     *uint64 `json:"likeCount"`
	RetweetCount  *uint64 `json:"retweetCount"`
	ReplyCount    *uint64 `json:"replyCount"`
	QuoteCount    *uint64 `json:"quoteCount"`
	BookmarkCount *uint64 `json:"bookmarkCount"`

	PublicMetrics *publicMetrics `json:"public_metrics"`

	ExtendedEntities *apiEntities `json:"extendedEntities"`
	Entities         *apiEntities `json:"entities"`

	QuotedTweet  *apiTweet `json:"quoted_tweet"`
	QuotedTweet2 *apiTweet `json:"quotedTweet"`
}

func pick(flat *uint64, fallback uint64) uint64 {
	if flat != nil {
		return *flat
	}
	return fallback
}

func (t *apiTweet) toTweet(requestedID string) *types.Tweet {
	pm := publicMetrics{}
	if t.PublicMetrics != nil {
		pm = *t.PublicMetrics
	}

	out := &types.Tweet{
		ID:        t.ID,
		Text:      t.Text,
		Views:     pick(t.ViewCount, pm.ImpressionCount),
		Likes:     pick(t.LikeCount, pm.LikeCount),
		Retweets:  pick(t.RetweetCount, pm.RetweetCount),
		Replies:   pick(t.ReplyCount, pm.ReplyCount),
		Quotes:    pick(t.QuoteCount, pm.QuoteCount),
		Bookmarks: pick(t.BookmarkCount, pm.BookmarkCount),
	}
	if out.ID == "" {
		out.ID = requestedID
	}
	if out.Text == "" {
		out.Text = t.FullText
	}

	author := t.Author
	if author == nil {
		author = t.User
	}
	if author != nil {
		out.AuthorHandle = author.handle()
		out.AuthorName = author.Name
		out.AuthorAvatar = author.avatar()
	}

	if created, err := time.Parse(twitterCreatedAtLayout, t.CreatedAt); err == nil {
		out.CreatedAt = created.UTC()
	}

	entities := t.ExtendedEntities
	if entities == nil {
		entities = t.Entities
	}
	if entities != nil && len(entities.Media) > 0 && entities.Media[0].Type == "photo" {
		out.ImageURL = entities.Media[0].MediaURLHTTPS
		if out.ImageURL == "" {
			out.ImageURL = entities.Media[0].URL
		}
	}

	quoted := t.QuotedTweet
	if quoted == nil {
		quoted = t.QuotedTweet2
	}
	if quoted != nil && (quoted.Text != "" || quoted.FullText != "") {
		out.QuotedTweet = quoted.toTweet("")
	}

	return out
}
