package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned by every operation when the bridge is turned
	// off or the transport is unavailable.
	ErrDisabled = errors.New("mqtt: bridge disabled")

	// ErrInvalidConfig is returned by Configure when broker settings fail validation.
	// The previously applied configuration stays in effect.
	ErrInvalidConfig = errors.New("mqtt: invalid broker configuration")

	// ErrNotConfigured is returned by Start before any configuration was applied.
	ErrNotConfigured = errors.New("mqtt: session not configured")

	// ErrNotConnected is returned when attempting operations on a disconnected session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectInProgress is returned by Start while another connect is pending.
	ErrConnectInProgress = errors.New("mqtt: connect already in progress")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or malformed topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
