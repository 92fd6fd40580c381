package fetcher

import "encoding/json"

// ParseJob is the opaque serialized payload pushed onto a pod's fetch:queue.
// JSON is used as the wire format since the contract only requires an
// opaque, language-neutral record — no consumer outside this repo needs to
// read it.
type ParseJob struct {
	URL              string `json:"url"`
	Domain           string `json:"domain"`
	Depth            int    `json:"depth"`
	HTMLBytes        []byte `json:"html_bytes"`
	ContentType      string `json:"content_type"`
	CrawledTimestamp int64  `json:"crawled_timestamp"`
	StatusCode       int    `json:"status_code"`
}

// Encode serializes the job for storage on the parse queue.
func (j ParseJob) Encode() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeParseJob deserializes a payload popped from the parse queue.
func DecodeParseJob(payload string) (ParseJob, error) {
	var job ParseJob
	err := json.Unmarshal([]byte(payload), &job)
	return job, err
}
