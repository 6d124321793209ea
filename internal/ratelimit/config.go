package ratelimit

import "time"

var defaultConfig = EndpointConfig{
	Window:             time.Minute,
	MaxRequests:        30,
	BlockDuration:      5 * time.Minute,
	SuspicionThreshold: 3,
}

// endpointConfigs returns the per-endpoint limits. Expensive or abuse-prone
// endpoints get tighter budgets; everything else uses the default.
func endpointConfigs() map[string]EndpointConfig {
	return map[string]EndpointConfig{
		"/api/chat": {
			Window:             time.Minute,
			MaxRequests:        10,
			BlockDuration:      5 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/decode-vin": {
			Window:             time.Minute,
			MaxRequests:        20,
			BlockDuration:      5 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/valuation": {
			Window:             time.Minute,
			MaxRequests:        5,
			BlockDuration:      10 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/submit-lead": {
			Window:             10 * time.Minute,
			MaxRequests:        3,
			BlockDuration:      30 * time.Minute,
			SuspicionThreshold: 2,
		},
		"/api/submit-offer": {
			Window:             time.Minute,
			MaxRequests:        10,
			BlockDuration:      10 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/vehicle-image": {
			Window:             time.Minute,
			MaxRequests:        30,
			BlockDuration:      5 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/offers": {
			Window:             time.Minute,
			MaxRequests:        30,
			BlockDuration:      5 * time.Minute,
			SuspicionThreshold: 3,
		},
		"/api/admin/auth/login": {
			Window:             15 * time.Minute,
			MaxRequests:        5,
			BlockDuration:      30 * time.Minute,
			SuspicionThreshold: 2,
		},
		"/api/admin/auth/forgot-password": {
			Window:             time.Hour,
			MaxRequests:        3,
			BlockDuration:      time.Hour,
			SuspicionThreshold: 2,
		},
	}
}
