package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/foomo/notion-mcp/service/vo"
	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Title    string   `yaml:"title"`
	Date     string   `yaml:"date"`
	Excerpt  string   `yaml:"excerpt"`
	Cover    string   `yaml:"cover,omitempty"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Author   string   `yaml:"author"`
}

// ExportPost renders a post as a markdown document with YAML front matter.
func (s *service) ExportPost(ctx context.Context, slug string) (vo.Markdown, error) {
	post, err := s.GetPost(ctx, slug)
	if err != nil {
		return "", err
	}
	return exportMarkdown(post)
}

func exportMarkdown(post *vo.Post) (vo.Markdown, error) {
	matter, err := yaml.Marshal(frontMatter{
		Title:    post.Title,
		Date:     post.Date,
		Excerpt:  post.Excerpt,
		Cover:    post.Cover,
		Tags:     post.Tags,
		Category: post.Category,
		Author:   post.Author.Name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(matter)
	buf.WriteString("---\n\n")
	buf.WriteString(string(post.Markdown))
	return vo.Markdown(buf.String()), nil
}
