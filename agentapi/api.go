// Package agentapi exposes the review store to automated callers over the
// agent bridge channel.
//
// The Handler answers on the page side. The Client is what a caller in
// another realm uses: it shares nothing with the Handler but the document.
package agentapi

// Method names.
const (
	GetReviews      = "getReviews"
	GetReview       = "getReview"
	AddComment      = "addComment"
	AddReply        = "addReply"
	ResolveReview   = "resolveReview"
	UnresolveReview = "unresolveReview"
	UpdateComment   = "updateComment"
	DeleteReview    = "deleteReview"
)

// Methods lists every method in catalogue order.
var Methods = []string{
	GetReviews, GetReview, AddComment, AddReply,
	ResolveReview, UnresolveReview, UpdateComment, DeleteReview,
}

// Default authors of replies.
const (
	AuthorAgent = "agent"
	AuthorUser  = "user"
)

// Params is the union of every method's parameters. Comment is a pointer
// so updateComment can tell an omitted comment from an empty one.
type Params struct {
	ReviewID string  `json:"reviewId,omitempty"`
	Selector string  `json:"selector,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	Priority string  `json:"priority,omitempty"`
	Category string  `json:"category,omitempty"`
	Author   string  `json:"author,omitempty"`
}

func (p Params) comment() string {
	if p.Comment == nil {
		return ""
	}
	return *p.Comment
}

// Text returns a pointer to s, for Params.Comment.
func Text(s string) *string { return &s }

// Added is the data of a successful addComment.
type Added struct {
	ID string `json:"id"`
}

// Replied is the data of a successful addReply.
type Replied struct {
	ReviewID string `json:"reviewId"`
	ReplyID  string `json:"replyId"`
}

// MethodInfo documents one method in the catalogue.
type MethodInfo struct {
	Args        string `json:"args"`
	Description string `json:"description"`
}

// APIDescriptor is the catalogue embedded in the page's JSON node so a
// caller reading the page can discover the interface.
type APIDescriptor struct {
	Hint    string                `json:"hint"`
	Methods map[string]MethodInfo `json:"methods"`
}

// Descriptor returns the method catalogue.
func Descriptor() APIDescriptor {
	return APIDescriptor{
		Hint: "Call these methods over the dr-api-request channel (or the domreview_<method> MCP tools). " +
			"Every call is synchronous and answers { requestId, success, data?, error? }.",
		Methods: map[string]MethodInfo{
			GetReviews:      {Args: "", Description: "Get all reviews for the current page"},
			GetReview:       {Args: "reviewId", Description: "Get a single review by id"},
			AddComment:      {Args: "{ selector, comment, priority?, category? }", Description: "Add a review on a DOM element"},
			AddReply:        {Args: "{ reviewId, comment, author? }", Description: "Reply to an existing review"},
			ResolveReview:   {Args: "reviewId", Description: "Mark a review resolved"},
			UnresolveReview: {Args: "reviewId", Description: "Reopen a resolved review"},
			UpdateComment:   {Args: "{ reviewId, comment?, priority?, category? }", Description: "Change a review's text or metadata"},
			DeleteReview:    {Args: "reviewId", Description: "Delete a review"},
		},
	}
}
