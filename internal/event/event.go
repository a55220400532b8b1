// Package event decodes object-created notifications into object locations.
//
// Notifications use the S3 event notification shape regardless of which object
// store produced them, so the Lambda trigger, the HTTP endpoint and the JetStream
// consumer all feed the pipeline the same value.
package event

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// ErrNoRecords is returned when a notification carries no usable record.
var ErrNoRecords = errors.New("notification has no records")

// Location identifies one object: bucket plus decoded key.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

// Decode parses a JSON-encoded S3 event notification.
func Decode(data []byte) (events.S3Event, error) {
	var evt events.S3Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return events.S3Event{}, fmt.Errorf("decode notification: %w", err)
	}
	return evt, nil
}

// Locate resolves the first notification record into a bucket and a
// percent-decoded key ("+" decodes to a space, as S3 encodes it).
func Locate(evt events.S3Event) (Location, error) {
	if len(evt.Records) == 0 {
		return Location{}, ErrNoRecords
	}

	rec := evt.Records[0]
	bucket := rec.S3.Bucket.Name
	if bucket == "" {
		return Location{}, fmt.Errorf("notification record missing bucket name")
	}
	if rec.S3.Object.Key == "" {
		return Location{}, fmt.Errorf("notification record missing object key")
	}

	return Location{Bucket: bucket, Key: DecodeKey(rec.S3.Object.Key)}, nil
}

// DecodeKey percent-decodes an object key taken from a notification. Escapes
// that are not two hex digits are kept as literal text.
func DecodeKey(raw string) string {
	if key, err := url.QueryUnescape(raw); err == nil {
		return key
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+3 <= len(raw) {
				if v, err := hex.DecodeString(raw[i+1 : i+3]); err == nil {
					b.Write(v)
					i += 2
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// EncodeKey percent-encodes a key the way S3 notifications carry it: each path
// segment is query-escaped and slashes are kept.
func EncodeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.QueryEscape(s)
	}
	return strings.Join(segments, "/")
}

// ObjectCreated builds a single-record notification for an object that was just written.
func ObjectCreated(bucket, key string, size int64, at time.Time) events.S3Event {
	return events.S3Event{
		Records: []events.S3EventRecord{{
			EventVersion: "2.1",
			EventSource:  "ecomonitor:objectstore",
			EventTime:    at.UTC(),
			EventName:    "ObjectCreated:Put",
			S3: events.S3Entity{
				SchemaVersion: "1.0",
				Bucket:        events.S3Bucket{Name: bucket},
				Object: events.S3Object{
					Key:  EncodeKey(key),
					Size: size,
				},
			},
		}},
	}
}
