package messaging

import "strings"

// Header names understood by the transports.
const (
	// HeaderMsgID is the JetStream de-duplication id; the consumer also uses
	// it as the invocation request id.
	HeaderMsgID = "Nats-Msg-Id"
)

// Queue groups.
const (
	QueueBridgeWorkers = "ecomon-bridge"
)

// TelemetrySubject returns the NATS subject a producer of kind publishes on,
// e.g. "sensors.temperature".
func TelemetrySubject(prefix, kind string) string {
	return prefix + "." + kind
}

// TelemetryWildcard matches every telemetry subject under prefix.
func TelemetryWildcard(prefix string) string {
	return prefix + ".*"
}

// TelemetryTopic returns the MQTT topic for kind, e.g. "sensors/temperature".
func TelemetryTopic(prefix, kind string) string {
	return prefix + "/" + kind
}

// KindFromSubject returns the last token of a telemetry subject or topic.
func KindFromSubject(subject string) string {
	if i := strings.LastIndexAny(subject, "./"); i >= 0 {
		return subject[i+1:]
	}
	return subject
}
