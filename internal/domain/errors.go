package domain

import "errors"

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrInvalidToolConfig  = errors.New("invalid tool configuration")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrActiveRequest      = errors.New("active request exists")
	ErrQuotaExceeded      = errors.New("monthly chat limit reached")
	ErrFeedbackExists     = errors.New("feedback already submitted")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)
