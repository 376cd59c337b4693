// README: FCM push notifier for dispatched drivers.
package dispatch

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"

	"radar/internal/types"
)

// FCMNotifier delivers dispatch pushes through Firebase Cloud Messaging.
type FCMNotifier struct {
	client *messaging.Client
}

func NewFCMNotifier(client *messaging.Client) *FCMNotifier {
	return &FCMNotifier{client: client}
}

func (n *FCMNotifier) NotifyDriver(ctx context.Context, deviceToken string, callID types.ID, description string) error {
	if n.client == nil {
		return errors.New("messaging client not configured")
	}
	_, err := n.client.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "New emergency call",
			Body:  description,
		},
		Data: map[string]string{
			"callId":    string(callID),
			"eventType": EventNewEmergencyCall,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	return err
}
