// Package queue defines the send_tickets job exchanged over the message
// broker and the publishers and consumers that carry it.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Broker names for the send_tickets job.  The same names are used for
// the RabbitMQ queue and the Kafka topic.
const (
	SendTicketsQueue     = "tickets.send"
	SendTicketsDeadQueue = "tickets.send.dead"
)

// SendTicketsJob asks the dispatcher to deliver the credentials of one
// order.  It carries only the order id; the dispatcher loads everything
// else so that a redelivered job always sends the current active set.
type SendTicketsJob struct {
	OrderID     uint64    `json:"order_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Encode marshals the job for the wire.
func (j SendTicketsJob) Encode() ([]byte, error) { return json.Marshal(j) }

// DecodeSendTicketsJob parses a job body.  A zero order id is rejected.
func DecodeSendTicketsJob(body []byte) (SendTicketsJob, error) {
	var j SendTicketsJob
	if err := json.Unmarshal(body, &j); err != nil {
		return j, fmt.Errorf("unmarshal send_tickets job: %w", err)
	}
	if j.OrderID == 0 {
		return j, fmt.Errorf("send_tickets job without order_id")
	}
	return j, nil
}
