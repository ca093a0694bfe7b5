package job

import (
	"encoding/json"
	"time"
)

// HandlerScrapeWorker names the consumer that records failed scrape tasks.
const HandlerScrapeWorker = "scrape-worker"

// Job is a task that failed terminally and waits for a manual retry.
// Source is the URL or filename the task was about.
type Job struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
