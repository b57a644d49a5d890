package email

import (
	"testing"
	"time"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/events"
)

func TestIsConfigured(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.SMTPConfig
		want bool
	}{
		{"disabled", config.SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com"}, false},
		{"no host", config.SMTPConfig{Enabled: true, From: "no-reply@example.com"}, false},
		{"no from", config.SMTPConfig{Enabled: true, Host: "smtp.example.com"}, false},
		{"complete", config.SMTPConfig{Enabled: true, Host: "smtp.example.com", From: "no-reply@example.com"}, true},
	}
	for _, tc := range testCases {
		if got := NewService(tc.cfg, nil).IsConfigured(); got != tc.want {
			t.Errorf("%s: IsConfigured() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSendEmailRequiresConfiguration(t *testing.T) {
	service := NewService(config.SMTPConfig{}, nil)
	if err := service.SendEmail("owner@example.com", "subject", "body"); err == nil {
		t.Error("Expected SendEmail to fail without SMTP configuration")
	}
}

// An unconfigured service subscribes without sending; every handled
// event type must drain cleanly, including the key-delivery and
// renewal notices
func TestSubscribeToEventsHandlesAllNotificationTypes(t *testing.T) {
	service := NewService(config.SMTPConfig{}, nil)
	bus := events.NewBus()
	service.SubscribeToEvents(bus)

	payload := map[string]interface{}{
		"license_id":     "lic-1",
		"license_key":    "AAAA-BBBB-CCCC-DDDD",
		"plan":           "starter",
		"customer_email": "owner@example.com",
		"remaining":      10,
	}
	for _, eventType := range []events.EventType{
		events.LicenseCreated,
		events.CreditsLow,
		events.CreditsDepleted,
		events.CreditsReset,
	} {
		bus.Publish(events.Event{Type: eventType, Data: payload})
	}

	// Handlers run on the bus goroutines; give them time to drain
	time.Sleep(50 * time.Millisecond)
}
