package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mrjones/oauth"
	"golang.org/x/time/rate"

	config "github.com/postpilot/postpilot/configs"
)

const (
	xBaseURL        = "https://api.twitter.com/2"
	xMediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	xRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	xAuthorizeURL    = "https://api.twitter.com/oauth/authorize"
	xAccessTokenURL  = "https://api.twitter.com/oauth/access_token"
)

type createTweetRequest struct {
	Text    string      `json:"text"`
	ReplyTo *tweetReply `json:"reply,omitempty"`
	Media   *tweetMedia `json:"media,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// XService posts to the X API using OAuth 1.0a user-context signing. A
// process-wide rate limiter paces outbound calls below the configured
// per-minute budget.
type XService struct {
	client    *http.Client
	fetcher   *http.Client
	limiter   *rate.Limiter
	baseURL   string
	uploadURL string
}

func NewXService(cfg config.Config) (*XService, error) {
	if cfg.X.ConsumerKey == "" || cfg.X.AccessToken == "" {
		return nil, fmt.Errorf("x api credentials are not configured")
	}

	consumer := oauth.NewConsumer(cfg.X.ConsumerKey, cfg.X.ConsumerSecret, oauth.ServiceProvider{
		RequestTokenUrl:   xRequestTokenURL,
		AuthorizeTokenUrl: xAuthorizeURL,
		AccessTokenUrl:    xAccessTokenURL,
	})
	consumer.HttpClient = &http.Client{Timeout: 30 * time.Second}

	token := oauth.AccessToken{
		Token:  cfg.X.AccessToken,
		Secret: cfg.X.AccessTokenSecret,
	}
	client, err := consumer.MakeHttpClient(&token)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth client: %w", err)
	}

	perMin := cfg.PublishRatePerMin
	if perMin <= 0 {
		perMin = 30
	}

	return &XService{
		client:    client,
		fetcher:   &http.Client{Timeout: 60 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		baseURL:   xBaseURL,
		uploadURL: xMediaUploadURL,
	}, nil
}

// CreatePost uploads any referenced media, then creates the tweet. It
// returns the id assigned by X.
func (s *XService) CreatePost(ctx context.Context, content string, mediaURLs []string, inReplyTo string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	request := createTweetRequest{Text: content}
	if inReplyTo != "" {
		request.ReplyTo = &tweetReply{InReplyToTweetID: inReplyTo}
	}

	if len(mediaURLs) > 0 {
		mediaIDs := make([]string, 0, len(mediaURLs))
		for _, u := range mediaURLs {
			id, err := s.uploadMedia(ctx, u)
			if err != nil {
				return "", err
			}
			mediaIDs = append(mediaIDs, id)
		}
		request.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return "", err
	}

	var tweet createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tweet); err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if tweet.Data.ID == "" {
		return "", &PublishError{Kind: PublishFailureTransient, Message: "response contains no tweet id"}
	}

	return tweet.Data.ID, nil
}

// uploadMedia downloads the referenced resource and pushes it through the
// v1.1 media upload endpoint, returning the media id to attach.
func (s *XService) uploadMedia(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", &PublishError{Kind: PublishFailureRejected, Message: fmt.Sprintf("invalid media url %q", mediaURL)}
	}

	resp, err := s.fetcher.Do(req)
	if err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: fmt.Sprintf("failed to fetch media %q: %v", mediaURL, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &PublishError{Kind: PublishFailureRejected, Message: fmt.Sprintf("media %q returned status %d", mediaURL, resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: err.Error()}
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, &form)
	if err != nil {
		return "", err
	}
	upload.Header.Set("Content-Type", writer.FormDataContentType())

	uploadResp, err := s.client.Do(upload)
	if err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: err.Error()}
	}
	defer uploadResp.Body.Close()

	if err := classifyResponse(uploadResp); err != nil {
		return "", err
	}

	var media mediaUploadResponse
	if err := json.NewDecoder(uploadResp.Body).Decode(&media); err != nil {
		return "", &PublishError{Kind: PublishFailureTransient, Message: fmt.Sprintf("failed to decode media response: %v", err)}
	}
	if media.MediaIDString == "" {
		return "", &PublishError{Kind: PublishFailureTransient, Message: "media response contains no id"}
	}

	return media.MediaIDString, nil
}

// classifyResponse maps an X API status code onto the publish failure
// taxonomy: 429 and 5xx are retryable, other non-2xx are terminal.
func classifyResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := extractAPIError(body)
	if detail == "" {
		detail = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &PublishError{Kind: PublishFailureRateLimited, Message: detail}
	case resp.StatusCode >= 500:
		return &PublishError{Kind: PublishFailureTransient, Message: detail}
	default:
		return &PublishError{Kind: PublishFailureRejected, Message: detail}
	}
}

func extractAPIError(body []byte) string {
	var errResp struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	if errResp.Detail != "" {
		return errResp.Detail
	}
	if len(errResp.Errors) > 0 {
		return errResp.Errors[0].Message
	}
	return errResp.Title
}

var _ Poster = (*XService)(nil)
