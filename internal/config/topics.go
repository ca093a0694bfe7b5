package config

const (
	// TopicIngestScrape is the NSQ topic for queued web page scrapes.
	TopicIngestScrape = "ingest.scrape"

	// ChannelScrapeWorker is the consumer channel of the scrape worker.
	ChannelScrapeWorker = "impar-api"
)
