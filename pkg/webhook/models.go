// Package webhook delivers caption and session events to registered HTTP
// endpoints, with HMAC signing, per-endpoint circuit breaking, retry with
// backoff, and dead-lettering of undeliverable events.
package webhook

import (
	"database/sql"
	"encoding/json"

	"github.com/pitabwire/frame/data"

	"github.com/livetranslate/livetranslate/pkg/events"
)

// Endpoint is a registered webhook subscription. An endpoint receives every
// event whose type is in EventTypes; when SessionFilter is set, only events
// from that session.
type Endpoint struct {
	data.BaseModel

	Name          string         `gorm:"type:varchar(255);not null"  json:"name"`
	URL           string         `gorm:"type:varchar(2048);not null" json:"url"`
	Secret        string         `gorm:"type:varchar(512);not null"  json:"-"`
	EventTypes    EventTypesJSON `gorm:"type:jsonb;default:'[]'"     json:"event_types"`
	SessionFilter string         `gorm:"type:varchar(50);index:idx_we_session" json:"session_filter,omitempty"`
	IsActive      bool           `gorm:"default:true"                json:"is_active"`
	Description   string         `gorm:"type:text"                   json:"description,omitempty"`
	FailureCount  int            `gorm:"default:0"                   json:"failure_count"`
	LastFailureAt sql.NullTime   `json:"last_failure_at,omitempty"`
	CircuitState  string         `gorm:"type:varchar(20);default:'closed'" json:"circuit_state"`
}

func (Endpoint) TableName() string { return "webhook_endpoints" }

// Matches reports whether the endpoint should receive the given envelope.
func (e *Endpoint) Matches(env events.Envelope) bool {
	if !e.EventTypes.Contains(env.Type) {
		return false
	}
	return e.SessionFilter == "" || e.SessionFilter == env.SessionID
}

// EventTypesJSON stores the subscribed event types as a JSONB column.
type EventTypesJSON []events.EventType

func (e EventTypesJSON) Value() (interface{}, error) {
	return json.Marshal(e)
}

func (e *EventTypesJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		*e = EventTypesJSON{}
		return nil
	}
}

// Contains checks whether the list includes the given event type.
func (e EventTypesJSON) Contains(et events.EventType) bool {
	for _, t := range e {
		if t == et {
			return true
		}
	}
	return false
}

// Delivery records one attempt to deliver an event to an endpoint.
type Delivery struct {
	data.BaseModel

	EndpointID    string       `gorm:"type:varchar(50);not null;index:idx_wd_endpoint" json:"endpoint_id"`
	EventID       string       `gorm:"type:varchar(50);not null"                       json:"event_id"`
	EventType     string       `gorm:"type:varchar(100);not null"                      json:"event_type"`
	SessionID     string       `gorm:"type:varchar(50)"                                json:"session_id,omitempty"`
	RequestBody   string       `gorm:"type:text"                                       json:"-"`
	ResponseCode  int          `gorm:"default:0"                                       json:"response_code"`
	ResponseBody  string       `gorm:"type:text"                                       json:"-"`
	AttemptNumber int          `gorm:"default:1"                                       json:"attempt_number"`
	Status        string       `gorm:"type:varchar(20);not null;index:idx_wd_status"   json:"status"`
	Error         string       `gorm:"type:text"                                       json:"error,omitempty"`
	DurationMs    int64        `gorm:"default:0"                                       json:"duration_ms"`
	NextRetryAt   sql.NullTime `json:"next_retry_at,omitempty"`
}

func (Delivery) TableName() string { return "webhook_deliveries" }

// DeadLetter holds events that exhausted all delivery retries.
type DeadLetter struct {
	data.BaseModel

	EndpointID string `gorm:"type:varchar(50);not null;index:idx_wdl_endpoint" json:"endpoint_id"`
	EventID    string `gorm:"type:varchar(50);not null"                        json:"event_id"`
	EventType  string `gorm:"type:varchar(100);not null"                       json:"event_type"`
	Payload    string `gorm:"type:text;not null"                               json:"payload"`
	LastError  string `gorm:"type:text"                                        json:"last_error"`
	Attempts   int    `gorm:"default:0"                                        json:"attempts"`
	Replayable bool   `gorm:"default:true"                                     json:"replayable"`
}

func (DeadLetter) TableName() string { return "webhook_dead_letters" }
