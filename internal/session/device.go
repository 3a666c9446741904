// Package session records sign-ins, one row per successful login, stored in
// a partition chosen by the client's device class.
package session

import "strings"

type DeviceType string

const (
	DeviceWeb    DeviceType = "web"
	DeviceMobile DeviceType = "mobile"
	DeviceAPI    DeviceType = "api"
)

var mobileMarkers = []string{"iphone", "android", "blackberry"}

var apiMarkers = []string{"curl/", "wget/", "httpie/", "python-requests/", "go-http-client/", "postmanruntime/"}

// Classify derives the device class from a user agent. Mobile markers win
// over api markers; anything unrecognised, including an empty agent, is web.
func Classify(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	for _, marker := range mobileMarkers {
		if strings.Contains(ua, marker) {
			return DeviceMobile
		}
	}
	for _, marker := range apiMarkers {
		if strings.Contains(ua, marker) {
			return DeviceAPI
		}
	}
	return DeviceWeb
}
