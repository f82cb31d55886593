package api

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"github.com/onnwee/stammer/state"
)

// TriviaQuestion fetches one question from the Open Trivia Database. All
// filters are optional; opentdb encodes text with HTML entities, which are
// decoded here.
func (c *Client) TriviaQuestion(ctx context.Context, category, difficulty, qtype string) (state.TriviaQuestion, error) {
	q := url.Values{}
	q.Set("amount", "1")
	if category != "" {
		q.Set("category", category)
	}
	if difficulty != "" {
		q.Set("difficulty", difficulty)
	}
	if qtype != "" {
		q.Set("type", qtype)
	}
	var body struct {
		ResponseCode int `json:"response_code"`
		Results      []struct {
			Question         string   `json:"question"`
			CorrectAnswer    string   `json:"correct_answer"`
			IncorrectAnswers []string `json:"incorrect_answers"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.TriviaBase+"/api.php?"+q.Encode(), &body); err != nil {
		return state.TriviaQuestion{}, err
	}
	if body.ResponseCode != 0 || len(body.Results) == 0 {
		return state.TriviaQuestion{}, fmt.Errorf("opentdb response code %d", body.ResponseCode)
	}
	r := body.Results[0]
	out := state.TriviaQuestion{
		Question:      html.UnescapeString(r.Question),
		CorrectAnswer: html.UnescapeString(r.CorrectAnswer),
	}
	for _, a := range r.IncorrectAnswers {
		out.IncorrectAnswers = append(out.IncorrectAnswers, html.UnescapeString(a))
	}
	return out, nil
}
