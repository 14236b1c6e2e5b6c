package businessflow

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
)

// ErrorClassifier assigns a failure reason to exactly one error category
type ErrorClassifier interface {
	Classify(reason string) models.ErrorCategory
}

// PricingModel supplies the cost figures of a report
type PricingModel interface {
	EstimatedCost(totalMessages int) float64
	ActualCost(sentMessages int) float64
	Currency() string
}

// ReportTiming is the run clock at termination
type ReportTiming struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Stopped is set when the run was ended by an operator rather than by running out of messages
	Stopped bool
}

// ReportInput is everything the report is derived from
type ReportInput struct {
	RunUUID      uuid.UUID
	CampaignName string
	Messages     []models.SendingMessage
	Config       models.SendingConfig
	Timing       ReportTiming
	Classifier   ErrorClassifier
	Pricing      PricingModel
}

// BuildCampaignReport derives the report of a finished run. It has no side effects and
// produces the same report for the same input.
func BuildCampaignReport(in ReportInput) models.CampaignReportData {
	classifier := in.Classifier
	if classifier == nil {
		classifier = KeywordErrorClassifier{}
	}

	report := models.CampaignReportData{
		RunUUID:        in.RunUUID,
		CampaignName:   in.CampaignName,
		StartedAt:      in.Timing.StartedAt,
		FinishedAt:     in.Timing.FinishedAt,
		GeneratedAt:    in.Timing.FinishedAt,
		PeakTimes:      []models.PeakHour{},
		FailedMessages: []models.FailedMessageEntry{},
	}
	if d := in.Timing.FinishedAt.Sub(in.Timing.StartedAt); d > 0 {
		report.DurationSeconds = int64(d / time.Second)
	}

	limit := in.Config.RetryLimit()
	retryDelay := time.Duration(in.Config.ErrorSimulation.RetryDelayMinutes) * time.Minute
	loc := in.Config.ScheduleLocation()
	hours := make(map[int]*models.PeakHour)
	receipts := false

	s := &report.Summary
	s.TotalMessages = len(in.Messages)
	for _, m := range in.Messages {
		if m.RetryCount > 0 {
			s.RetriedMessages++
		}
		if m.DeliveredAt != nil || m.ReadAt != nil {
			receipts = true
		}

		switch m.Status {
		case models.SendingMessageStatusSent:
			s.SentMessages++
			if m.DeliveredAt != nil || m.ReadAt != nil {
				s.DeliveredMessages++
			}
			if m.ReadAt != nil {
				s.ReadMessages++
			}
			if m.SentAt != nil {
				bucket(hours, m.SentAt.In(loc).Hour()).Sent++
			}
		case models.SendingMessageStatusFailed:
			s.FailedMessages++
			reason := ""
			if m.FailureReason != nil {
				reason = *m.FailureReason
			}
			category := classifier.Classify(reason)
			report.Errors.Add(category)

			entry := models.FailedMessageEntry{
				MessageID:       m.UUID,
				Position:        m.Position,
				RecipientName:   m.RecipientName,
				RecipientNumber: m.RecipientNumber,
				Content:         m.Content,
				FailureReason:   reason,
				Category:        category,
				RetryCount:      m.RetryCount,
				CanRetry:        m.CanRetry(limit),
			}
			if m.LastAttemptAt != nil {
				at := *m.LastAttemptAt
				entry.LastAttemptAt = &at
				bucket(hours, at.In(loc).Hour()).Failed++
				if entry.CanRetry {
					next := at.Add(retryDelay)
					entry.NextRetryAt = &next
				}
			}
			report.FailedMessages = append(report.FailedMessages, entry)
		case models.SendingMessageStatusScheduled:
			s.ScheduledMessages++
		default:
			s.PendingMessages++
		}
	}

	// Without any receipt every sent message is taken as delivered
	if !receipts {
		s.DeliveredMessages = s.SentMessages
	}

	report.Status = reportStatus(*s, in.Timing.Stopped)
	report.Rates = models.ReportRates{
		SuccessRate:  percent(s.SentMessages, s.TotalMessages),
		DeliveryRate: percent(s.DeliveredMessages, s.TotalMessages),
		ReadRate:     percent(s.ReadMessages, s.TotalMessages),
		FailureRate:  percent(s.FailedMessages, s.TotalMessages),
	}
	report.Costs = reportCosts(in.Pricing, *s)
	report.RecipientQuality = recipientQuality(in.Messages)

	for _, h := range hours {
		h.SuccessRate = percent(h.Sent, h.Sent+h.Failed)
		report.PeakTimes = append(report.PeakTimes, *h)
	}
	slices.SortFunc(report.PeakTimes, func(a, b models.PeakHour) int { return a.Hour - b.Hour })
	slices.SortFunc(report.FailedMessages, func(a, b models.FailedMessageEntry) int { return a.Position - b.Position })

	return report
}

func reportStatus(s models.ReportSummary, stopped bool) models.CampaignReportStatus {
	remaining := s.TotalMessages - s.SentMessages - s.FailedMessages
	switch {
	case stopped && remaining > 0:
		return models.CampaignReportStatusCancelled
	case s.TotalMessages > 0 && s.SentMessages == s.TotalMessages:
		return models.CampaignReportStatusCompleted
	case s.SentMessages == 0:
		return models.CampaignReportStatusFailed
	default:
		return models.CampaignReportStatusPartial
	}
}

func reportCosts(p PricingModel, s models.ReportSummary) models.ReportCosts {
	if p == nil {
		return models.ReportCosts{}
	}
	costs := models.ReportCosts{
		EstimatedCost: p.EstimatedCost(s.TotalMessages),
		ActualCost:    p.ActualCost(s.SentMessages),
		Currency:      p.Currency(),
	}
	switch {
	case s.SentMessages > 0:
		costs.CostPerMessage = costs.ActualCost / float64(s.SentMessages)
	case s.TotalMessages > 0:
		costs.CostPerMessage = costs.EstimatedCost / float64(s.TotalMessages)
	}
	return costs
}

var validPhoneNumber = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

// NormalizePhoneNumber strips formatting characters from a phone number
func NormalizePhoneNumber(number string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(number))
}

// IsValidPhoneNumber reports whether a normalized number looks like an E.164 number
func IsValidPhoneNumber(number string) bool {
	return validPhoneNumber.MatchString(number)
}

func recipientQuality(msgs []models.SendingMessage) models.RecipientQuality {
	q := models.RecipientQuality{DuplicateNumbers: []string{}, InvalidNumberList: []string{}}
	seen := make(map[string]int, len(msgs))
	for _, m := range msgs {
		n := NormalizePhoneNumber(m.RecipientNumber)
		seen[n]++
		if seen[n] == 2 {
			q.DuplicateNumbers = append(q.DuplicateNumbers, n)
		}
		if seen[n] == 1 && !IsValidPhoneNumber(n) {
			q.InvalidNumberList = append(q.InvalidNumberList, n)
		}
	}
	q.UniqueRecipients = len(seen)
	q.DuplicateRecipients = len(msgs) - len(seen)
	q.InvalidNumbers = len(q.InvalidNumberList)
	slices.Sort(q.DuplicateNumbers)
	slices.Sort(q.InvalidNumberList)
	return q
}

func bucket(hours map[int]*models.PeakHour, hour int) *models.PeakHour {
	h, ok := hours[hour]
	if !ok {
		h = &models.PeakHour{Hour: hour}
		hours[hour] = h
	}
	return h
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// KeywordErrorClassifier categorizes failure reasons by keyword. The first matching
// category wins; anything unmatched is "other".
type KeywordErrorClassifier struct{}

var errorKeywords = []struct {
	category models.ErrorCategory
	keywords []string
}{
	{models.ErrorCategoryRateLimit, []string{"rate limit", "too many requests", "throttl", "429"}},
	{models.ErrorCategoryInvalidNumber, []string{"invalid number", "invalid phone", "not registered", "unknown recipient"}},
	{models.ErrorCategoryNetwork, []string{"network", "timeout", "connection", "unreachable", "dns"}},
	{models.ErrorCategoryAPI, []string{"api", "status code", "500", "502", "503", "bad request"}},
}

func (KeywordErrorClassifier) Classify(reason string) models.ErrorCategory {
	r := strings.ToLower(reason)
	for _, group := range errorKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(r, kw) {
				return group.category
			}
		}
	}
	return models.ErrorCategoryOther
}

// FlatRatePricing charges the same price for every message
type FlatRatePricing struct {
	PricePerMessage float64
	CurrencyCode    string
}

func (p FlatRatePricing) EstimatedCost(totalMessages int) float64 {
	return p.PricePerMessage * float64(totalMessages)
}

func (p FlatRatePricing) ActualCost(sentMessages int) float64 {
	return p.PricePerMessage * float64(sentMessages)
}

func (p FlatRatePricing) Currency() string {
	return p.CurrencyCode
}
