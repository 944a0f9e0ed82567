package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
	popTimeout     = 2 * time.Second
)

type Job struct {
	Kind    string    `json:"kind"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type SMTPConfig struct {
	From     string
	FromName string
	Host     string
	Port     string
	User     string
	Pass     string
}

// Queue holds outgoing email jobs in a Redis list and drains them over SMTP.
type Queue struct {
	redis      *redis.Client
	smtp       SMTPConfig
	send       func(Job) error
	retryDelay time.Duration
}

func NewQueue(rdb *redis.Client, cfg SMTPConfig) *Queue {
	q := &Queue{
		redis:      rdb,
		smtp:       cfg,
		retryDelay: 5 * time.Second,
	}
	q.send = q.sendNow
	return q
}

func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	job.Tries = 0
	job.Created = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := q.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		metrics.RecordEmail(job.Kind, "queue_failed")
		return fmt.Errorf("queue email to %s: %w", job.To, err)
	}

	metrics.RecordEmail(job.Kind, "queued")
	logger.Debug("email queued", "kind", job.Kind, "to", job.To)
	return nil
}

// Start drains the queue until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			q.processNext(ctx)
		}
	}
}

func (q *Queue) processNext(ctx context.Context) {
	result, err := q.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad email job", "error", err)
		return
	}

	job.Tries++
	if err := q.send(job); err != nil {
		logger.Error("email send failed", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			if q.retryDelay > 0 {
				time.Sleep(q.retryDelay)
			}
			data, _ := json.Marshal(job)
			q.redis.LPush(context.Background(), queueKey, data)
			return
		}

		metrics.RecordEmail(job.Kind, "failed")
		q.saveFailed(job, err)
		return
	}

	metrics.RecordEmail(job.Kind, "sent")
	logger.Info("email sent", "kind", job.Kind, "to", job.To)
}

func (q *Queue) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", q.smtp.FromName, q.smtp.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if q.smtp.User != "" && q.smtp.Pass != "" {
		auth = smtp.PlainAuth("", q.smtp.User, q.smtp.Pass, q.smtp.Host)
	}

	addr := q.smtp.Host + ":" + q.smtp.Port
	return smtp.SendMail(addr, auth, q.smtp.From, []string{job.To}, []byte(message))
}

func (q *Queue) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	q.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Error("email moved to failed queue", "to", job.To, "tries", job.Tries)
}

// QueueLength reports the backlog and updates the queue gauge.
func (q *Queue) QueueLength(ctx context.Context) int64 {
	length, _ := q.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (q *Queue) Close() error {
	return q.redis.Close()
}
