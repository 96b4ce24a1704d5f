package dynatrace

import (
	"context"
	"net/http"
	"net/url"
)

// ListProblemsParams filters GET /problems
type ListProblemsParams struct {
	Page
	Timeframe
	Fields          string
	ProblemSelector string
	EntitySelector  string
	Sort            string
}

// ListProblems lists problems observed within the timeframe
func (c *Client) ListProblems(ctx context.Context, p ListProblemsParams) (*ProblemsList, error) {
	q := url.Values{}
	set(q, "fields", p.Fields)
	p.Timeframe.apply(q)
	set(q, "problemSelector", p.ProblemSelector)
	set(q, "entitySelector", p.EntitySelector)
	set(q, "sort", p.Sort)
	return getJSON[ProblemsList](ctx, c, "/problems", p.Page.apply(q))
}

// GetProblem retrieves a single problem. fields adds optional blocks such as +evidenceDetails.
func (c *Client) GetProblem(ctx context.Context, problemID, fields string) (*Problem, error) {
	q := url.Values{}
	set(q, "fields", fields)
	return getJSON[Problem](ctx, c, "/problems/"+seg(problemID), q)
}

// CloseProblem closes a problem and attaches a closing comment
func (c *Client) CloseProblem(ctx context.Context, problemID, message string) (*ProblemCloseResult, error) {
	return sendJSON[ProblemCloseResult](ctx, c, http.MethodPost, "/problems/"+seg(problemID)+"/close", nil,
		ProblemCloseRequest{Message: message})
}

// ListComments lists the comments on a problem
func (c *Client) ListComments(ctx context.Context, problemID string, page Page) (*CommentsList, error) {
	return getJSON[CommentsList](ctx, c, commentsPath(problemID), page.apply(url.Values{}))
}

// GetComment retrieves one comment
func (c *Client) GetComment(ctx context.Context, problemID, commentID string) (*Comment, error) {
	return getJSON[Comment](ctx, c, commentsPath(problemID)+"/"+seg(commentID), nil)
}

// AddComment creates a comment on a problem
func (c *Client) AddComment(ctx context.Context, problemID string, req CommentRequest) (*Comment, error) {
	return sendJSON[Comment](ctx, c, http.MethodPost, commentsPath(problemID), nil, req)
}

// UpdateComment replaces the content of a comment
func (c *Client) UpdateComment(ctx context.Context, problemID, commentID string, req CommentRequest) error {
	_, err := c.Put(ctx, commentsPath(problemID)+"/"+seg(commentID), req, nil)
	return err
}

// DeleteComment removes a comment
func (c *Client) DeleteComment(ctx context.Context, problemID, commentID string) error {
	_, err := c.Delete(ctx, commentsPath(problemID)+"/"+seg(commentID), nil)
	return err
}

func commentsPath(problemID string) string {
	return "/problems/" + seg(problemID) + "/comments"
}
