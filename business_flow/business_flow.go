// Package businessflow contains the core business logic for ad serving,
// impression billing, and the campaign/ad/wallet lifecycle.
package businessflow

import (
	"strings"

	"github.com/videostreampro/adserver/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for logging and
// impression attribution
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceType models.DeviceType `json:"device_type"`
	OSType     models.OSType     `json:"os_type"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance, classifying
// the device and OS from the user agent
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceType: ParseDeviceType(userAgent),
		OSType:     ParseOSType(userAgent),
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ParseDeviceType classifies a user agent into a coarse device bucket.
// Tablet markers are checked before mobile since tablet UAs often carry
// both.
func ParseDeviceType(userAgent string) models.DeviceType {
	if userAgent == "" {
		return models.DeviceTypeUnknown
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "smart-tv"), strings.Contains(ua, "smarttv"),
		strings.Contains(ua, "appletv"), strings.Contains(ua, "googletv"),
		strings.Contains(ua, "roku"):
		return models.DeviceTypeTV
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "kindle"):
		return models.DeviceTypeTablet
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"):
		return models.DeviceTypeMobile
	case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "x11"), strings.Contains(ua, "linux"):
		return models.DeviceTypeDesktop
	default:
		return models.DeviceTypeUnknown
	}
}

// ParseOSType classifies a user agent into a coarse OS bucket
func ParseOSType(userAgent string) models.OSType {
	if userAgent == "" {
		return models.OSTypeUnknown
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"),
		strings.Contains(ua, "ios"):
		return models.OSTypeIOS
	case strings.Contains(ua, "android"):
		return models.OSTypeAndroid
	case strings.Contains(ua, "windows"):
		return models.OSTypeWindows
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return models.OSTypeMacOS
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return models.OSTypeLinux
	default:
		return models.OSTypeUnknown
	}
}
