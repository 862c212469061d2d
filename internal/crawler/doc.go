// Package crawler implements the thread-crawling core: page URL templates,
// the extraction pipeline with its fallback decision, the budgeted fetch
// scheduler, post merging, and the ThreadCrawler and TopicLister
// orchestrators that compose them. Browsers and page handles are consumed
// through the interfaces in interfaces.go.
package crawler
