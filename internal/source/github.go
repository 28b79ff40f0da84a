// Package source fetches documents from remote locations so they can be
// submitted to the ingestion queue without a local upload.
package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Document is a remote file ready for ingestion.
type Document struct {
	FileName  string
	MediaType string
	Data      []byte
}

// GitHubSource fetches single files from a GitHub repository.
// Rate limits (primary and secondary) are handled by the waiter client;
// GITHUB_TOKEN, when set, raises the quota.
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
}

func NewGitHubSource(owner, repo string) (*GitHubSource, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}
	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubSource{client: client, owner: owner, repo: repo}, nil
}

// Fetch downloads one file by repository path. The media type is derived
// from the file extension; unknown extensions default to text/plain so
// the extractor's best-effort path applies.
func (s *GitHubSource) Fetch(ctx context.Context, filePath string) (*Document, error) {
	fileContent, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s/%s/%s: %w", s.owner, s.repo, filePath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("%s is not a file", filePath)
	}

	data, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", filePath, err)
	}

	name := path.Base(filePath)
	return &Document{
		FileName:  name,
		MediaType: mediaTypeFor(name),
		Data:      data,
	}, nil
}

func mediaTypeFor(name string) string {
	switch ext := path.Ext(name); ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "text/plain"
	}
}
