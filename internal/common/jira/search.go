// internal/common/jira/search.go
package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"ticket-responder/internal/models"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

type searchRequest struct {
	JQL           string   `json:"jql"`
	Fields        []string `json:"fields"`
	MaxResults    int      `json:"maxResults"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

type searchResponse struct {
	Issues        []issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken"`
	IsLast        bool    `json:"isLast"`
}

type issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string      `json:"summary"`
		Comment commentPage `json:"comment"`
	} `json:"fields"`
}

type commentPage struct {
	Comments   []comment `json:"comments"`
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
}

type comment struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"author"`
	Body    string `json:"body"`
	Created string `json:"created"`
}

// Search runs jql and returns every matching ticket with its full comment thread.
func (c *Client) Search(ctx context.Context, jql string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	req := searchRequest{
		JQL:        jql,
		Fields:     []string{"summary", "comment"},
		MaxResults: c.pageSize,
	}

	for {
		var page searchResponse
		if err := c.search.DoJSON(ctx, "POST", c.url("/rest/api/2/search/jql", nil), c.headers(), req, &page); err != nil {
			return nil, fmt.Errorf("jira search: %w", err)
		}

		for _, is := range page.Issues {
			comments, err := c.completeThread(ctx, is)
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, models.Ticket{
				ID:       is.ID,
				Key:      is.Key,
				Summary:  is.Fields.Summary,
				Comments: toComments(comments),
			})
		}

		if page.IsLast || page.NextPageToken == "" || len(page.Issues) == 0 {
			break
		}
		req.NextPageToken = page.NextPageToken
	}

	c.logger.Debug("Search completed", map[string]interface{}{
		"jql":     jql,
		"tickets": len(tickets),
	})
	return tickets, nil
}

// completeThread fetches the rest of a thread when search returned only its first page.
func (c *Client) completeThread(ctx context.Context, is issue) ([]comment, error) {
	comments := is.Fields.Comment.Comments
	total := is.Fields.Comment.Total

	for len(comments) < total {
		query := url.Values{}
		query.Set("startAt", strconv.Itoa(len(comments)))
		query.Set("maxResults", strconv.Itoa(c.pageSize))
		query.Set("orderBy", "created")

		var page commentPage
		path := "/rest/api/2/issue/" + url.PathEscape(is.Key) + "/comment"
		if err := c.search.DoJSON(ctx, "GET", c.url(path, query), c.headers(), nil, &page); err != nil {
			return nil, fmt.Errorf("jira comments %s: %w", is.Key, err)
		}
		if len(page.Comments) == 0 {
			break
		}
		comments = append(comments, page.Comments...)
	}
	return comments, nil
}

func toComments(in []comment) []models.Comment {
	out := make([]models.Comment, 0, len(in))
	for i, cm := range in {
		created, _ := time.Parse(jiraTimeLayout, cm.Created)
		out = append(out, models.Comment{
			ID:       cm.ID,
			Author:   cm.Author.DisplayName,
			Body:     cm.Body,
			Position: i,
			Created:  created,
		})
	}
	return out
}
