package crawler

import (
	"context"

	"go.uber.org/zap"
)

// TopicLister reads the topic rows of a board, forum or collection page.
type TopicLister struct {
	browser Browser
	logger  *zap.Logger
}

// NewTopicLister builds a TopicLister.
func NewTopicLister(browser Browser, logger *zap.Logger) *TopicLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicLister{browser: browser, logger: logger}
}

// List returns up to topk topics of the listing at rawURL; topk <= 0 returns all.
func (l *TopicLister) List(ctx context.Context, rawURL string, topk int) TopicListResult {
	page, err := l.browser.Navigate(ctx, rawURL)
	if err != nil {
		l.logger.Warn("listing unreachable", zap.String("url", rawURL), zap.Error(err))
		return TopicListResult{Error: CodeNavigationFailed, Topics: []Topic{}, Source: rawURL}
	}
	defer page.Close()

	rows, err := page.ExtractTopicRows(ctx)
	if err != nil {
		l.logger.Warn("listing parse failed", zap.String("url", rawURL), zap.Error(err))
		return TopicListResult{Error: CodeFailedToParse, Topics: []Topic{}, Source: rawURL}
	}

	topics := make([]Topic, 0, len(rows))
	for _, row := range rows {
		if row.URL == "" {
			continue
		}
		topics = append(topics, Topic{
			Title:         CleanTitle(row.Title),
			Replies:       max(row.Replies, 0),
			PostDate:      row.PostDate,
			LastReplyTime: row.LastReplyTime,
			URL:           row.URL,
		})
	}
	if topk > 0 && len(topics) > topk {
		topics = topics[:topk]
	}
	return TopicListResult{Success: true, Total: len(topics), Topics: topics, Source: rawURL}
}
