package utils

import (
	"time"
)

// HTTP constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// RequestTimeout bounds the work a handler does on behalf of one request
	RequestTimeout = 30 * time.Second

	// ExportTimeout bounds report export, which renders a workbook
	ExportTimeout = 2 * time.Minute
)

// XLSXContentType is the media type of exported reports
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
