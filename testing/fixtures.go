package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestRun creates an idle run with the default sending config
func (tf *TestFixtures) CreateTestRun(name string) (*models.CampaignRun, error) {
	run := &models.CampaignRun{
		UUID:      uuid.New(),
		Name:      name,
		Status:    models.RunStatusIdle,
		Config:    models.DefaultSendingConfig(),
		CreatedAt: time.Now().UTC(),
	}
	if err := tf.DB.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create test run: %w", err)
	}
	return run, nil
}

// CreateTestMessages creates count pending messages for a run with sequential numbers
func (tf *TestFixtures) CreateTestMessages(runID uint, count int) ([]*models.SendingMessage, error) {
	recipients := make([]models.Recipient, 0, count)
	for i := 0; i < count; i++ {
		recipients = append(recipients, models.Recipient{
			Name:        fmt.Sprintf("Recipient %d", i+1),
			PhoneNumber: fmt.Sprintf("+98912%07d", i+1),
			Content:     "Test message",
		})
	}

	msgs := models.NewSendingMessages(recipients)
	out := make([]*models.SendingMessage, 0, len(msgs))
	for i := range msgs {
		msgs[i].RunID = runID
		out = append(out, &msgs[i])
	}
	if err := tf.DB.DB.CreateInBatches(out, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to create test messages: %w", err)
	}
	return out, nil
}
