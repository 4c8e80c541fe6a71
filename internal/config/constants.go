package config

import "time"

const (
	// Fixed assistant reply used when the AI gateway cannot be reached
	FallbackReply = "I apologize, but I'm having trouble connecting to my knowledge base at the moment. Please try again later."

	// Used when the gateway answers without any text
	EmptyAnswerReply = "Sorry, I couldn't generate a response."

	// Sessions
	DefaultSessionTitle = "New Conversation"
	SessionTitleMaxLen  = 60
	SessionsPerPage     = 20
	MaxSessionsPerPage  = 100

	// AI request timeout
	RequestTimeout = 90 * time.Second

	// Gateway retrieval limit sent with every chat request
	GatewayResultLimit = 10

	// Source defaults
	DefaultSourceConfidence = 0.7

	// Usage
	DefaultPlanID     = "free"
	LowQuotaThreshold = 10
	UnlimitedChats    = -1
	PlanCacheDuration = 10 * time.Minute

	// Usage outbox
	OutboxPollInterval = 2 * time.Second
	OutboxBatchSize    = 50
	OutboxLease        = 30 * time.Second
	OutboxBackoffBase  = 5 * time.Second
	OutboxBackoffMax   = 30 * time.Minute
	OutboxMaxAttempts  = 12

	// Stale request cleanup interval
	StaleRequestCleanup = 60 * time.Second
	StaleRequestAge     = 3 * time.Minute

	// Documents
	MaxUploadBytes    = 25 << 20
	DefaultCollection = "All Documents"

	// Server
	ShutdownTimeout   = 15 * time.Second
	ReadHeaderTimeout = 10 * time.Second
)
